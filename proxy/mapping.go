package proxy

/* Mapping associates a public proxy ID with the real Discord webhook URL
 * Uses value semantics as it represents data, not behavior
 */
type Mapping struct {
	ID         string
	WebhookURL string
}

// KeyPrefix namespaces mapping records inside a shared key-value store
const KeyPrefix = "webhook:"

// DiscordWebhookPrefix is the only destination accepted at registration
const DiscordWebhookPrefix = "https://discord.com/api/webhooks/"

// ProxyPath is the route prefix of the forwarding endpoint
const ProxyPath = "/api/proxy/"

// Key returns the storage key for a proxy ID
func Key(id string) string {
	return KeyPrefix + id
}

// Key returns the storage key of the mapping
func (m Mapping) Key() string {
	return Key(m.ID)
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-proxy/ratelimit"
)

/* validate-limits - Standalone CLI tool to validate limits.yaml
 * Usage: go run cmd/validate-limits/main.go [limits.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	limitsFile := "limits.yaml"
	if len(os.Args) > 1 {
		limitsFile = os.Args[1]
	}

	fmt.Printf("Validating limits file: %s\n", limitsFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := ratelimit.NewLoader()
	if err := loader.Load(limitsFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	policies := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Effective limits (%d):\n", len(policies))

	for i, p := range policies {
		fmt.Printf("\n%d. Limiter: %s\n", i+1, p.Name)
		fmt.Printf("   Max:    %d requests per client\n", p.Limit)
		fmt.Printf("   Window: %s\n", p.Window)
	}

	fmt.Printf("\n✓ All limits are valid!\n")
	os.Exit(0)
}

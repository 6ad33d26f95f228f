// =============================================================================
// govfin - Main Entry Point
// =============================================================================
//
// USAGE:
//   govfin process       - Build the nationwide and local reports
//   govfin query         - Read stored reports, entity profiles and trends
//   govfin validate      - Check configuration and inputs without processing
//   govfin version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : ingest, aggregation, reports, store and query packages
//   - pkg/utils      : file management and run logs
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/govfin/cmd"
)

func main() {
	cmd.Execute()
}

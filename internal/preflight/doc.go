// Package preflight provides readiness checks for external services
// and filesystem paths that FlexOne depends on.
//
// These checks run in two contexts:
//   - The CLI "flexone status" command uses individual check functions
//     (CheckBackendHealth, CheckLLM, CheckDirectoryAccess) to display
//     service health.
//   - RunAll bundles the full set for one-shot diagnostics before the
//     backend is launched.
package preflight

package version

// Build holds the build identifier, injected via -ldflags. Default "dev".
var Build = "dev"

// Engine names the trace engine recorded in each history entry's input context.
func Engine() string {
	return "tracesim/" + Build
}

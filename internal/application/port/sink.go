package port

type Sink interface {
	// Live line: overwrite last line (no newline)
	WriteLive(line string) error
	// Block of text followed by a newline
	WriteLine(line string) error
	// Normal newline (for logs)
	NewLine() error
}

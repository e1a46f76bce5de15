package command

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/testable/internal/config"
)

// LogCommand prints the end of the configured log file.
type LogCommand struct {
	*BaseCommand
	config *config.Config
	lines  int
	file   string
}

// NewLogCommand creates a new log command.
func NewLogCommand(cfg *config.Config) *LogCommand {
	return &LogCommand{
		BaseCommand: NewBaseCommand("log", "Show the end of the log file", "log [options]"),
		config:      cfg,
	}
}

// SetupFlags configures the flags for the log command.
func (c *LogCommand) SetupFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.lines, "n", 10, "Number of lines to show from the end of the file")
	fs.StringVar(&c.file, "file", "", "Path to log file (overrides config log.file)")
}

// Execute runs the log command.
func (c *LogCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := noArgs(args, stderr); err != nil {
		return err
	}
	path := c.file
	if path == "" {
		path = config.DefaultSchema().Resolve(c.config, "log.file")
	}
	if path == "" {
		_, _ = fmt.Fprintln(stderr, "No log file configured. Use --file or set log.file in config.")
		return fmt.Errorf("no log file configured")
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintf(stderr, "Log file does not exist: %s\n", path)
			return fmt.Errorf("log file not found: %s", path)
		}
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	lines, err := readLastNLines(f, c.lines)
	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(stdout, line)
	}
	return nil
}

// readLastNLines returns the last n lines of r, holding at most n in memory.
func readLastNLines(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, n)
	count := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	total := min(count, n)
	out := make([]string, total)
	for i := range total {
		out[i] = ring[(count-total+i)%n]
	}
	return out, nil
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"qms/internal/paths"
)

var (
	logFollow bool
	logLines  int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the project log",
	Long: `View .qms/logs/qms.log, written when logging.file is enabled in config.toml.

Examples:
  qms log              # Show last 50 lines
  qms log -n 100       # Show last 100 lines
  qms log -f           # Follow log output (tail -f)`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Follow log output")
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "Number of lines to show")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	root, err := paths.FindProjectRoot(projectFlag)
	if err != nil {
		return err
	}
	logPath := paths.LogPath(filepath.Join(paths.ToolDir(root), paths.LogsDirName))
	out := cmd.OutOrStdout()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No logs found.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Log file location: %s\n", logPath)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Enable file logging with:")
		fmt.Fprintln(out, "  [logging]")
		fmt.Fprintln(out, "  file = true")
		return nil
	}

	if logFollow {
		return followLogFile(out, logPath)
	}
	return showLogLines(out, logPath, logLines)
}

func showLogLines(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}

	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return scanner.Err()
}

func followLogFile(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = file.Seek(0, io.SeekEnd)

	fmt.Fprintf(w, "Following %s (Ctrl+C to stop)\n\n", path)

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		fmt.Fprint(w, line)
	}
}

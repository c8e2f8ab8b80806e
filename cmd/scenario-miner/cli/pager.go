package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// outputWithPager writes content to w directly, unless w is an interactive
// stdout terminal and content is taller than the screen, in which case it is
// piped through $PAGER (default less).
func outputWithPager(w io.Writer, content string) {
	f, ok := w.(*os.File)
	if !ok || f != os.Stdout || !term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(w, content)
		return
	}

	_, height, err := term.GetSize(int(f.Fd()))
	if err != nil {
		height = 24
	}

	if strings.Count(content, "\n") <= height-2 {
		fmt.Fprint(w, content)
		return
	}

	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	cmd := exec.Command(pager) //nolint:gosec // PAGER is an operator-controlled environment variable
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprint(w, content)
	}
}

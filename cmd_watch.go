package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file.prl|dir]...",
	Short: "Re-check .prl files whenever they are written",
	Long: `Watch checks the given files, or every .prl file in the given directories
(default: the working directory), then re-checks a file each time it is written.`,
	RunE: runWatch,
}

// watchTarget is one directory being watched, optionally narrowed to files.
type watchTarget struct {
	dir   string
	files []string // empty means every .prl file in dir
}

func (t watchTarget) matches(path string) bool {
	if !isPRL(path) || filepath.Dir(path) != t.dir {
		return false
	}
	return len(t.files) == 0 || slices.Contains(t.files, path)
}

func isPRL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".prl")
}

func runWatch(cmd *cobra.Command, args []string) error {
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if len(args) == 0 {
		args = []string{"."}
	}
	targets, err := watchTargets(args)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	for _, t := range targets {
		if err := watcher.Add(t.dir); err != nil {
			return fmt.Errorf("watch %s: %w", t.dir, err)
		}
	}

	ctx := cmd.Context()
	p := newPrinter(cmd.OutOrStdout(), colored)
	var printMu sync.Mutex
	check := func(path string) {
		doc, err := redprl.LoadDocument(path)
		if err != nil {
			env.log.Warn().Err(err).Str("path", path).Msg("watch: read failed")
			return
		}
		upd, err := env.session.Refresh(ctx, doc)
		printMu.Lock()
		defer printMu.Unlock()
		if err != nil {
			if !errors.Is(err, redprl.ErrSuperseded) && ctx.Err() == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", displayPath(path), err)
			}
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "--- %s ---\n", displayPath(path))
		if errs := p.printUpdate(upd); errs == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
		}
	}

	for _, t := range targets {
		for _, path := range initialFiles(t) {
			check(path)
		}
	}

	debounce := redprl.NewDebouncer(env.cfg.Editor.Debounce.Duration)
	defer debounce.Stop()
	env.log.Info().Int("dirs", len(targets)).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !slices.ContainsFunc(targets, func(t watchTarget) bool { return t.matches(event.Name) }) {
				continue
			}
			path := event.Name
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				debounce.Trigger(path, func() { check(path) })
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				debounce.Cancel(path)
				env.session.Forget(redprl.FileURI(path))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			env.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// watchTargets groups args by directory. A directory argument widens its
// target to every .prl file.
func watchTargets(args []string) ([]watchTarget, error) {
	var targets []watchTarget
	wide := make(map[string]bool)
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		dir := abs
		if !info.IsDir() {
			dir = filepath.Dir(abs)
		}
		i := slices.IndexFunc(targets, func(t watchTarget) bool { return t.dir == dir })
		if i < 0 {
			targets = append(targets, watchTarget{dir: dir})
			i = len(targets) - 1
		}
		switch {
		case info.IsDir():
			wide[dir] = true
			targets[i].files = nil
		case !wide[dir] && !slices.Contains(targets[i].files, abs):
			targets[i].files = append(targets[i].files, abs)
		}
	}
	return targets, nil
}

func initialFiles(t watchTarget) []string {
	if len(t.files) > 0 {
		return t.files
	}
	matches, err := filepath.Glob(filepath.Join(t.dir, "*.prl"))
	if err != nil {
		return nil
	}
	return matches
}

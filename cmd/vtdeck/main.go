// Command vtdeck is a bare-metal terminal multiplexer: it owns a DRM
// display device directly (no X11, no Wayland), multiplexes one or
// more login shells across panes and tabs, and accepts steering
// commands from other invocations of itself over a control socket.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/opalaayan/vtdeck/internal/config"
	"github.com/opalaayan/vtdeck/internal/core"
	"github.com/opalaayan/vtdeck/internal/display"
	"github.com/opalaayan/vtdeck/internal/glyph"
	"github.com/opalaayan/vtdeck/internal/input"
	"github.com/opalaayan/vtdeck/internal/ipc"
	"github.com/opalaayan/vtdeck/internal/logging"
	"github.com/opalaayan/vtdeck/internal/raster"
	"github.com/opalaayan/vtdeck/internal/session"
	"github.com/opalaayan/vtdeck/internal/vt"
)

// CLI holds vtdeck's global flags. The command vocabulary itself
// (new-tab, next, prev, split-v, left, right) is a single token taken
// straight off os.Args rather than modeled as a kong argument: the
// long-form aliases (--new-tab, --next, ...) look like flags to kong,
// so the token is pulled out before kong ever sees the remaining
// argument list, and kong is left to parse everything else (global
// flags, --help).
type CLI struct {
	Debug bool `help:"Enable debug-level logging." short:"d"`
}

func main() {
	cmdToken, rest := extractCommandToken(os.Args[1:])

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("vtdeck"),
		kong.Description("A DRM/KMS terminal multiplexer."),
		kong.UsageOnError(),
		kong.Exit(func(code int) { os.Exit(code) }),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vtdeck: %v\n", err)
		os.Exit(1)
	}
	_, err = parser.Parse(rest)
	parser.FatalIfErrorf(err)

	if cmdToken != "" {
		os.Exit(runClient(cmdToken))
	}

	if ipc.Probe() {
		fmt.Fprintln(os.Stderr, "vtdeck: already running; pass a command (new-tab, next, prev, split-v, left, right) to control it")
		os.Exit(1)
	}

	os.Exit(runServer(cli.Debug))
}

// extractCommandToken pulls the first argument recognized by the
// control-IPC vocabulary out of args, returning it separately from
// everything else so kong never has to parse a token like --new-tab as
// an unrecognized flag.
func extractCommandToken(args []string) (token string, rest []string) {
	for _, a := range args {
		if token == "" {
			if _, ok := ipc.Resolve(a); ok {
				token = a
				continue
			}
		}
		rest = append(rest, a)
	}
	return token, rest
}

// runClient implements the CLI surface's "one of the tokens" path:
// connect and send, exit 0 on success, 1 if the token is unknown.
func runClient(token string) int {
	cmd, ok := ipc.Resolve(token)
	if !ok {
		fmt.Fprintf(os.Stderr, "vtdeck: unknown command %q\n", token)
		return 1
	}
	if err := ipc.Send(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "vtdeck: %v\n", err)
		return 1
	}
	return 0
}

// runServer assembles every component and runs the event core until
// shutdown, unwinding every acquired resource in reverse order on every
// exit path.
func runServer(debug bool) int {
	log, _, logFile, err := logging.Open(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vtdeck: %v\n", err)
		return 1
	}
	defer logFile.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		return 1
	}

	face := glyph.NewBasicFace()

	surface, err := display.Probe(log)
	if err != nil {
		log.Error("display probe failed", "error", err)
		return 1
	}
	if err := surface.Snapshot(); err != nil {
		log.Error("display snapshot failed", "error", err)
		surface.Release()
		return 1
	}
	if err := surface.CreateBuffers(); err != nil {
		log.Error("display buffer allocation failed", "error", err)
		surface.Release()
		return 1
	}
	if err := surface.Program(); err != nil {
		log.Error("display program failed", "error", err)
		surface.Release()
		return 1
	}
	defer surface.Release()

	stats := surface.Stats()
	metrics := face.Metrics(cfg.FontSizePx)
	if metrics.CellW <= 0 || metrics.CellH <= 0 {
		log.Error("font metrics unusable", "search_paths", cfg.FontPaths)
		return 1
	}
	cols := stats.Width / metrics.CellW
	rows := stats.Height/metrics.CellH - 1 // bottom row reserved for the tab bar

	arbiter, err := vt.Open("/dev/tty", surface)
	if err != nil {
		log.Error("vt arbiter open failed", "error", err)
		return 1
	}
	defer arbiter.Close()

	gateway, err := input.Enter()
	if err != nil {
		log.Error("raw mode entry failed", "error", err)
		return 1
	}
	defer gateway.Release()

	ipcSrv, err := ipc.Listen(log)
	if err != nil {
		log.Error("ipc listen failed", "error", err)
		return 1
	}
	defer ipcSrv.Close()

	store := session.NewStore(log, cfg.Shell, cols, rows, metrics)
	if err := store.NewTab(); err != nil {
		log.Error("initial tab spawn failed", "error", err)
		return 1
	}

	theme := raster.DefaultTheme
	theme.Foreground = raster.RGB(cfg.Colors.Foreground)
	theme.Background = raster.RGB(cfg.Colors.Background)
	renderer := raster.New(face, theme)

	loop := core.New(log, store, arbiter, gateway, ipcSrv, renderer, surface, cfg.FontSizePx)
	loop.Run()

	log.Info("vtdeck shutting down")
	return 0
}

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/thor/internal/proto"
)

type sendOptions struct {
	timeout time.Duration
	images  []string
	bar     string
	noImage bool
	noBar   bool
}

var (
	osdOpts  sendOptions
	noteOpts sendOptions
)

var osdCmd = &cobra.Command{
	Use:   "osd [text...]",
	Short: "Show the on-screen display",
	Long: `Show the on-screen display. A new request replaces what the OSD
currently shows and restarts its timeout.

Text arguments are joined with spaces. A literal \n starts a new line and
<b>, <i> and <u> change the style of the text they enclose.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(0, &osdOpts, args)
	},
}

var noteCmd = &cobra.Command{
	Use:   "note [text...]",
	Short: "Show a stacked notification",
	Long: `Show a notification. Notes stack on screen until they time out; when
all note windows are in use, requests wait in a queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(proto.FlagIsNote, &noteOpts, args)
	},
}

func init() {
	for _, c := range []struct {
		cmd  *cobra.Command
		opts *sendOptions
	}{{osdCmd, &osdOpts}, {noteCmd, &noteOpts}} {
		rootCmd.AddCommand(c.cmd)
		f := c.cmd.Flags()
		f.DurationVarP(&c.opts.timeout, "timeout", "t", 0,
			"How long the popup stays (0 = daemon default)")
		f.StringArrayVarP(&c.opts.images, "image", "i", nil,
			"Image to show (repeatable; the first one that loads is used)")
		f.StringVarP(&c.opts.bar, "bar", "b", "",
			"Progress bar as part/elements, e.g. 3/10")
		f.BoolVar(&c.opts.noImage, "no-image", false,
			"Do not show an image")
		f.BoolVar(&c.opts.noBar, "no-bar", false,
			"Do not show a progress bar")
	}
}

func send(flags proto.Flags, opts *sendOptions, args []string) error {
	msg, err := buildMessage(flags, opts, args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// buildMessage turns command line options into a request.
func buildMessage(flags proto.Flags, opts *sendOptions, args []string) (*proto.Message, error) {
	if opts.timeout < 0 {
		return nil, errors.New("timeout must not be negative")
	}
	if opts.noImage {
		flags |= proto.FlagNoImage
	}
	if opts.noBar {
		flags |= proto.FlagNoBar
	}

	// The daemon resolves paths from its own working directory.
	images := make([]string, 0, len(opts.images))
	for _, p := range opts.images {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve image path %s: %w", p, err)
		}
		images = append(images, abs)
	}

	text := strings.ReplaceAll(strings.Join(args, " "), `\n`, "\n")
	msg := proto.NewMessage(flags, text, images...)
	msg.Timeout = opts.timeout.Seconds()

	if opts.bar != "" {
		part, elements, err := parseBar(opts.bar)
		if err != nil {
			return nil, err
		}
		msg.SetBar(part, elements)
	}
	return msg, nil
}

// parseBar parses "part/elements".
func parseBar(s string) (part, elements uint32, err error) {
	p, e, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid bar %q: want part/elements", s)
	}
	pv, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid bar part %q: %w", p, err)
	}
	ev, err := strconv.ParseUint(strings.TrimSpace(e), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid bar elements %q: %w", e, err)
	}
	return uint32(pv), uint32(ev), nil
}

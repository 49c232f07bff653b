package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go-llmlab/internal/convo"
)

// speakerPalette colours speakers in declaration order.
var speakerPalette = []color.Attribute{color.FgCyan, color.FgYellow, color.FgGreen, color.FgMagenta, color.FgBlue, color.FgRed}

type turnPrinter struct {
	out    io.Writer
	colors map[string]*color.Color
}

func newTurnPrinter(out io.Writer, speakers []convo.Speaker) *turnPrinter {
	p := &turnPrinter{out: out, colors: make(map[string]*color.Color, len(speakers))}
	for i, s := range speakers {
		p.colors[s.ID] = color.New(speakerPalette[i%len(speakerPalette)], color.Bold)
	}
	return p
}

func (p *turnPrinter) Print(t convo.Turn) {
	name := t.SpeakerName + ":"
	if c, ok := p.colors[t.SpeakerID]; ok {
		name = c.Sprint(name)
	}
	fmt.Fprintf(p.out, "%s\n%s\n\n", name, t.Text)
}

func newConverseCommand() *cobra.Command {
	var (
		castFile  string
		rounds    int
		freshness string
		maxTokens int
	)
	cmd := &cobra.Command{
		Use:   "converse",
		Short: "Run a scripted conversation between personas on different backends",
		Long: `Seeds every speaker of a cast with its opening line, then lets each speaker
reply once per round in declaration order. Without --cast the built-in rugby
supporters' debate is used.

Example:
  llmlab converse --rounds 3
  llmlab converse --cast debate.yaml --freshness symmetric`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if castFile == "" {
				castFile = s.cfg.Conversation.CastFile
			}
			cast := convo.DefaultCast()
			if castFile != "" {
				if cast, err = convo.LoadCast(castFile); err != nil {
					return err
				}
			}

			if !cmd.Flags().Changed("rounds") {
				rounds = s.cfg.Conversation.Rounds
				if cast.Rounds > 0 {
					rounds = cast.Rounds
				}
			}
			if !cmd.Flags().Changed("freshness") {
				freshness = s.cfg.Conversation.Freshness
			}
			policy, err := convo.ParseFreshness(freshness)
			if err != nil {
				return err
			}

			speakers, err := cast.Resolve(s.registry.Get)
			if err != nil {
				return err
			}
			coord, err := convo.NewCoordinator(speakers, convo.WithFreshness(policy), convo.WithMaxTokens(maxTokens))
			if err != nil {
				return err
			}

			printer := newTurnPrinter(cmd.OutOrStdout(), speakers)
			for _, t := range coord.Turns() {
				printer.Print(t)
			}
			coord.OnReply(printer.Print)

			if err := coord.Run(cmd.Context(), rounds); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("✗ conversation stopped after %d complete rounds", coord.Round()))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&castFile, "cast", "", "YAML cast file (defaults to conversation.cast_file or the built-in cast)")
	cmd.Flags().IntVarP(&rounds, "rounds", "r", 5, "Number of rounds")
	cmd.Flags().StringVar(&freshness, "freshness", "sequential", "sequential | symmetric")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Cap every reply (0 uses each backend's setting)")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/looptide/looptide"
	"github.com/looptide/looptide/vm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/viterin/vek/vek32"
)

func newRenderCmd() *cobra.Command {
	var (
		seconds float64
		out     string
		pcm16   bool
		raw     bool
	)
	cmd := &cobra.Command{
		Use:   "render <graph.yml>",
		Short: "Render a graph offline to a .wav or .raw file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if !(seconds > 0) {
				return fmt.Errorf("--seconds must be positive, got %v", seconds)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("could not open graph: %w", err)
			}
			desc, err := looptide.ReadGraph(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			g, err := vm.Compile(desc, cfg.SampleRate, vm.WithMaxVoices(cfg.MaxVoices))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			for _, w := range g.Warnings() {
				log.Warn(w.String())
			}
			buffer := make([]float32, int(seconds*float64(cfg.SampleRate)))
			g.Render(buffer)
			if cfg.MasterGain != 1 {
				vek32.MulNumber_Inplace(buffer, float32(cfg.MasterGain))
			}
			var data []byte
			if raw {
				data, err = looptide.Raw(buffer, pcm16)
			} else {
				data, err = looptide.Wav(buffer, cfg.SampleRate, pcm16)
			}
			if err != nil {
				return fmt.Errorf("could not encode audio: %w", err)
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %w", out, err)
			}
			log.WithFields(logrus.Fields{"file": out, "samples": len(buffer), "graph": g.ID()}).Info("rendered")
			return nil
		},
	}
	cmd.Flags().Float64VarP(&seconds, "seconds", "s", 8, "length of the rendering")
	cmd.Flags().StringVarP(&out, "out", "o", "out.wav", "output file")
	cmd.Flags().BoolVar(&pcm16, "pcm16", false, "write 16-bit signed PCM instead of float32")
	cmd.Flags().BoolVar(&raw, "raw", false, "write headerless samples instead of .wav")
	return cmd
}

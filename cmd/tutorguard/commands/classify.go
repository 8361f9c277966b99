package commands

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/recovery"
)

// ClassifyCmd implements the 'classify' command.
type ClassifyCmd struct {
	File string `arg:"" optional:"" help:"File of JSON error objects, one per line or a JSON array (default: stdin)"`
	Hint string `help:"Category used when an error carries no structural signal (e.g. TTS)"`
}

// Classification is the line printed for each classified input.
type Classification struct {
	Error      errors.HTTPErrorResponse `json:"error"`
	StatusCode int                      `json:"statusCode,omitempty"`
	CanRecover bool                     `json:"canRecover"`
	Action     recovery.Action          `json:"action"`
	DelayMS    int64                    `json:"delayMs,omitempty"`
}

func (c *ClassifyCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	var hints []errors.ErrorCategory
	if c.Hint != "" {
		hint, err := errors.ParseCategory(c.Hint)
		if err != nil {
			return errors.NewValidationError(err.Error(), "hint")
		}
		hints = append(hints, hint)
	}

	in := g.in()
	if c.File != "" && c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return errors.NewFileError("open", c.File, "cannot open input").WithCause(err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	inputs, err := decodeInputs(in)
	if err != nil {
		return err
	}

	h, err := NewHandler(cfg, g.logger(), nil)
	if err != nil {
		return err
	}
	return writeClassifications(g.out(), h, inputs, hints)
}

func writeClassifications(w io.Writer, h *errorhandler.Handler, inputs []any, hints []errors.ErrorCategory) error {
	adapter := errors.NewHTTPErrorAdapter(h.Logger())
	enc := json.NewEncoder(w)
	for _, in := range inputs {
		res := h.Handle(in, hints...)
		line := Classification{
			Error:      adapter.FormatErrorResponse(res.Error),
			StatusCode: res.Error.StatusCode(),
			CanRecover: res.Strategy.CanRecover,
			Action:     res.Strategy.Action,
			DelayMS:    res.Strategy.Delay.Milliseconds(),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write classification: %w", err)
		}
	}
	return nil
}

// decodeInputs accepts a single JSON array or a stream of JSON values
// (usually one object per line).
func decodeInputs(r io.Reader) ([]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewFileError("read", "", "cannot read input").WithCause(err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, errors.NewValidationError("input is not a valid JSON array").WithCause(err)
		}
		return list, nil
	}

	var out []any
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var v any
		err := dec.Decode(&v)
		if stderrors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("input value %d is not valid JSON", len(out)+1)).WithCause(err)
		}
		out = append(out, v)
	}
}

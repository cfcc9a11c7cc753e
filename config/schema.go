package config

import (
	_ "embed"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid wraps every schema violation reported by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks raw garden.toml content against the embedded CUE schema.
// Unknown sections and keys are rejected.
func Validate(data []byte) error {
	raw := make(map[string]any)
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}

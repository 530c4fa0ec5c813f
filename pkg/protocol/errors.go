package protocol

import "errors"

// ErrBusinessRule marks a collaborator refusal that is a business outcome,
// not a step failure. Actions report it as a skipped result instead of
// failing the execution.
var ErrBusinessRule = errors.New("refused by business rule")

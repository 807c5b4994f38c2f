package rerrors_test

import (
	"errors"
	"testing"

	"github.com/regelum-go/regelum/internal/rerrors"
	"github.com/stretchr/testify/assert"
)

func TestZenoRuntimeErrorMessage(t *testing.T) {
	err := &rerrors.ZenoRuntimeError{Members: []string{"A", "B"}, Limit: 20}
	assert.Contains(t, err.Error(), "A")
	assert.Contains(t, err.Error(), "20")
}

func TestPolicyErrorUnwraps(t *testing.T) {
	cause := errors.New("multiple writers")
	err := &rerrors.PolicyError{Variable: "Hub.total", Cause: cause}
	assert.Contains(t, err.Error(), "Hub.total")
	assert.ErrorIs(t, err, cause)
}

func TestIntegratorErrorUnwraps(t *testing.T) {
	cause := errors.New("dt exceeds max_step")
	err := &rerrors.IntegratorError{SystemID: "VDP", Cause: cause}
	assert.Contains(t, err.Error(), "VDP")
	assert.ErrorIs(t, err, cause)
}

func TestGraphErrorMessage(t *testing.T) {
	err := &rerrors.GraphError{NodeID: "A", Reason: "duplicate node id"}
	assert.Contains(t, err.Error(), "A")
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestErrorsAsDiscriminatesKinds(t *testing.T) {
	var err error = &rerrors.GraphError{NodeID: "A", Reason: "dup"}

	var graphErr *rerrors.GraphError
	assert.ErrorAs(t, err, &graphErr)

	var zeno *rerrors.ZenoRuntimeError
	assert.False(t, errors.As(err, &zeno))
}

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_ParsesParams(t *testing.T) {
	d := NewDispatcher(nil)

	var got Params
	d.Register("TEST_CMD", func(_ context.Context, params Params) (string, error) {
		got = params
		return "ok", nil
	})

	resp, err := d.Dispatch(context.Background(), "TEST_CMD SOUND=print_complete NOW=1")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "print_complete", got.Get("SOUND"))
	assert.Equal(t, 1, got.GetInt("NOW", 0))
}

func TestDispatch_KeysAreCaseSensitive(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("TEST_CMD", func(_ context.Context, params Params) (string, error) {
		assert.Equal(t, "", params.Get("SOUND"))
		assert.Equal(t, "x", params.Get("sound"))
		return "", nil
	})

	_, err := d.Dispatch(context.Background(), "TEST_CMD sound=x")
	require.NoError(t, err)
}

func TestCall_StructuredParams(t *testing.T) {
	d := NewDispatcher(nil)

	var got Params
	d.Register("TEST_CMD", func(_ context.Context, params Params) (string, error) {
		got = params
		return "ok", nil
	})

	// Values pass through verbatim, never reparsed as KEY=VALUE tokens.
	resp, err := d.Call(context.Background(), "TEST_CMD", Params{"SOUND": "print done v=2"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "print done v=2", got.Get("SOUND"))
}

func TestCall_NilParams(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("TEST_CMD", func(_ context.Context, params Params) (string, error) {
		assert.NotNil(t, params)
		return "", nil
	})

	_, err := d.Call(context.Background(), "TEST_CMD", nil)
	require.NoError(t, err)

	_, err = d.Call(context.Background(), "NO_SUCH_CMD", nil)
	assert.ErrorContains(t, err, "unknown command")
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d := NewDispatcher(nil)

	_, err := d.Dispatch(context.Background(), "NO_SUCH_CMD")
	assert.ErrorContains(t, err, "unknown command")
}

func TestDispatch_EmptyLine(t *testing.T) {
	d := NewDispatcher(nil)

	_, err := d.Dispatch(context.Background(), "   ")
	assert.Error(t, err)
}

func TestDispatch_MalformedParameter(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("TEST_CMD", func(_ context.Context, _ Params) (string, error) {
		return "", nil
	})

	_, err := d.Dispatch(context.Background(), "TEST_CMD SOUND")
	assert.ErrorContains(t, err, "malformed parameter")
}

func TestRegister_DuplicatePanics(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register("TEST_CMD", func(_ context.Context, _ Params) (string, error) { return "", nil })

	assert.Panics(t, func() {
		d.Register("TEST_CMD", func(_ context.Context, _ Params) (string, error) { return "", nil })
	})
}

func TestParams_GetInt(t *testing.T) {
	p := Params{"NOW": "1", "BAD": "abc"}

	assert.Equal(t, 1, p.GetInt("NOW", 0))
	assert.Equal(t, 7, p.GetInt("MISSING", 7))
	assert.Equal(t, 7, p.GetInt("BAD", 7))
}

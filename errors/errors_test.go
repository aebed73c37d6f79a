package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapf(t *testing.T) {
	original := New("original")
	wrapped := Wrapf(original, "wrapped: %d", 42)

	assert.Contains(t, wrapped.Error(), "wrapped: 42")
	assert.Contains(t, wrapped.Error(), "original")
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

func TestAs(t *testing.T) {
	original := &customError{msg: "custom"}
	wrapped := Wrap(original, "wrapped")

	var target *customError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "custom", target.msg)
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "try this fix")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestWithDetail(t *testing.T) {
	err := New("error")
	withDetail := WithDetail(err, "detailed information")

	details := GetAllDetails(withDetail)
	require.Len(t, details, 1)
	assert.Equal(t, "detailed information", details[0])
}

func ExampleNew() {
	err := New("something went wrong")
	fmt.Println(err)
	// Output: something went wrong
}

func ExampleWrap() {
	baseErr := New("connection failed")
	err := Wrap(baseErr, "failed to connect to database")
	fmt.Println(err)
	// Output: failed to connect to database: connection failed
}

func TestNewImmutableError(t *testing.T) {
	err := NewImmutableError("tensor", "6f1c2a")

	assert.True(t, IsImmutable(err))
	assert.False(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "tensor 6f1c2a already exists")
	assert.Contains(t, GetAllHints(err), HintImmutable)
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("strand %d of tensor %s", 4, "abc")

	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "strand 4 of tensor abc")
}

func TestNewAccessDeniedError(t *testing.T) {
	err := NewAccessDeniedError("scout", "store_tensor", "t-1")

	assert.True(t, IsAccessDenied(err))
	assert.Contains(t, err.Error(), `caller "scout" may not store_tensor t-1`)
}

func TestNewInterfaceVersionError(t *testing.T) {
	err := NewInterfaceVersionError("1.0.0", "2.1.0")

	assert.True(t, IsInterfaceVersion(err))
	assert.Contains(t, err.Error(), "expected interface version 1.0.0, got 2.1.0")
}

func TestWrapStoreError(t *testing.T) {
	t.Run("foreign errors become store faults", func(t *testing.T) {
		err := WrapStoreError(fmt.Errorf("disk full"), "store tensor")
		assert.True(t, IsStoreError(err))
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("existing faults keep their kind", func(t *testing.T) {
		err := WrapStoreError(NewImmutableError("entity", "e1"), "store entity")
		assert.True(t, IsImmutable(err))
		assert.False(t, IsStoreError(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, WrapStoreError(nil, "noop"))
	})
}

func ExampleNewImmutableError() {
	err := NewImmutableError("tensor", "T7")
	fmt.Println(err)
	fmt.Println(GetAllHints(err)[0])
	// Output:
	// tensor T7 already exists: record is immutable
	// tensors are immutable: compose, don't overwrite
}

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	errKind  = errors.New("種別")
	errOther = errors.New("別の種別")
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "msg"))

	cause := errors.New("原因")
	err := Wrap(cause, "処理に失敗")
	assert.Equal(t, "処理に失敗: 原因", err.Error())
	assert.True(t, Is(err, cause))
}

func TestMark(t *testing.T) {
	t.Run("nil の場合は種別を返す", func(t *testing.T) {
		assert.Equal(t, errKind, Mark(nil, errKind))
	})

	t.Run("原因と種別の両方に一致する", func(t *testing.T) {
		cause := fmt.Errorf("接続失敗: %w", errOther)
		err := Mark(cause, errKind)

		assert.True(t, Is(err, errKind))
		assert.True(t, Is(err, errOther))
		assert.Equal(t, cause.Error(), err.Error())
	})

	t.Run("既に同じ種別なら包まない", func(t *testing.T) {
		err := Mark(errKind, errKind)
		assert.Equal(t, errKind, err)
	})
}

func TestIsAny(t *testing.T) {
	err := Mark(New("失敗"), errOther)
	assert.True(t, IsAny(err, errKind, errOther))
	assert.False(t, IsAny(err, errKind))
}

func TestExtractStackLines(t *testing.T) {
	assert.Nil(t, ExtractStackLines(nil, 3))

	lines := ExtractStackLines(New("失敗"), 2)
	assert.LessOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[0], "失敗")
}

// Package errs はエラー種別のマーキングと原因の保持を扱う。
// 種別判定は errors.Is ではなく errs.Is を使うこと。
package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

// Mark は err に種別 kind を付与する。err が nil なら kind をそのまま返す。
func Mark(err error, kind error) error {
	if err == nil {
		return kind
	}
	if cr.Is(err, kind) {
		return err
	}
	return cr.Mark(err, kind)
}

// Is は原因の連鎖と付与された種別の両方を見て判定する
func Is(err, target error) bool {
	return cr.Is(err, target)
}

// IsAny は err が kinds のいずれかに該当するかを返す
func IsAny(err error, kinds ...error) bool {
	return cr.IsAny(err, kinds...)
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

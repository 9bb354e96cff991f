package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName は在庫サービスとの通信で使うコンテンツサブタイプ
const codecName = "json"

// jsonCodec は在庫サービスの JSON ワイヤ形式を扱う
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Package api はHTTP APIのOpenAPI定義を提供する
//
// openapi.yaml はサーバーのリクエスト検証に使われる唯一の定義。
// ルートを追加・変更したときはこのファイルも更新すること。
package api

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var document []byte

// Load は埋め込まれたOpenAPI定義を読み込んで検証する
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("OpenAPI定義の読み込みに失敗: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("OpenAPI定義が不正です: %w", err)
	}
	return doc, nil
}

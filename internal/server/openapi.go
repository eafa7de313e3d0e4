package server

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gin-gonic/gin"

	"hdrcalc/api"
)

// newOpenAPIRouter は埋め込みのOpenAPI定義からルーターを作る
func newOpenAPIRouter() (routers.Router, error) {
	doc, err := api.Load()
	if err != nil {
		return nil, err
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("OpenAPIルーターの作成に失敗: %w", err)
	}
	return router, nil
}

// requestValidator はリクエストをOpenAPI定義で検証する
// 定義にないルートは検証せずに通し、gin のルーティングに任せる
func requestValidator(router routers.Router) gin.HandlerFunc {
	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(c *gin.Context) {
		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
			c.Abort()
			return
		}

		c.Next()
	}
}

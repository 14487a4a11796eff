package server

import (
	"encoding/json"
	stderrors "errors"
	nethttp "net/http"
	"unicode/utf8"

	"github.com/go-kratos/kratos/v2/errors"

	"github.com/iWorld-y/news_hud/app/hud/internal/service"
	"github.com/iWorld-y/news_hud/app/hud/pkg/feed"
	"github.com/iWorld-y/news_hud/app/hud/pkg/fetcher"
	"github.com/iWorld-y/news_hud/app/hud/pkg/forecast"
	"github.com/iWorld-y/news_hud/app/hud/pkg/llm"
)

const (
	reasonBadRequest = "BAD_REQUEST"
	reasonUpstream   = "UPSTREAM_ERROR"
	reasonServer     = "SERVER_ERROR"

	maxMessageRunes = 200
)

var errInternal = errors.InternalServer(reasonServer, "internal error")

// errorBody 错误响应体，不包含堆栈
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorEncoder(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	se := toStatus(err)
	body, _ := json.Marshal(errorBody{Error: se.Reason, Message: se.Message})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(int(se.Code))
	_, _ = w.Write(body)
}

// toStatus 把内部错误归类为 400 / 502 / 500
func toStatus(err error) *errors.Error {
	var (
		ve *service.ValidationError
		fe *fetcher.FetchError
		pe *feed.ParseError
		ue *llm.UpstreamError
		ce *forecast.ChunkError
	)
	switch {
	case stderrors.As(err, &ve):
		return errors.BadRequest(reasonBadRequest, ve.Error())
	case stderrors.As(err, &ce), stderrors.As(err, &ue), stderrors.As(err, &fe), stderrors.As(err, &pe),
		stderrors.Is(err, forecast.ErrInvalidFinalDocument):
		return errors.New(nethttp.StatusBadGateway, reasonUpstream, shorten(err.Error()))
	}

	se := errors.FromError(err)
	if se.Code >= 400 && se.Code < 500 {
		return errors.New(int(se.Code), reasonBadRequest, shorten(se.Message))
	}
	return errors.New(nethttp.StatusInternalServerError, reasonServer, "internal error")
}

func shorten(s string) string {
	if utf8.RuneCountInString(s) <= maxMessageRunes {
		return s
	}
	return string([]rune(s)[:maxMessageRunes]) + "..."
}

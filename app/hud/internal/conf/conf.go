package conf

import "github.com/iWorld-y/news_hud/app/hud/pkg/config"

type Bootstrap struct {
	Server *Server        `json:"server"`
	Hud    *config.Config `json:"hud"`
}

type Server struct {
	Http *HTTP `json:"http"`
}

type HTTP struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

package cli

import (
	"bufio"
	"io"

	"github.com/dmitrijs2005/medreport/internal/client/client"
	"github.com/dmitrijs2005/medreport/internal/client/config"
)

// TokenStore keeps the session token between invocations.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type App struct {
	config *config.Config
	api    client.API
	tokens TokenStore
	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires the CLI to api. A saved token, if any, is handed to api.
func NewApp(c *config.Config, api client.API, tokens TokenStore, in io.Reader, out io.Writer) (*App, error) {
	tok, err := tokens.Load()
	if err != nil {
		return nil, err
	}
	if tok != "" {
		api.SetToken(tok)
	}
	return &App{
		config: c,
		api:    api,
		tokens: tokens,
		reader: bufio.NewReader(in),
		out:    out,
	}, nil
}

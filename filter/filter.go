// Package filter decides which inbound chat messages are kept, based on an expr expression.
package filter

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/types"
)

type Filter struct {
	source  string
	program *vm.Program
}

// New compiles expression. An empty expression yields a nil *Filter, which accepts everything.
func New(expression string) (*Filter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("could not compile filter %q: %w", expression, err)
	}
	return &Filter{source: expression, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Accept runs the filter for msg. Evaluation errors reject the message.
func (f *Filter) Accept(msg *types.ChatMessage) bool {
	if f == nil {
		return true
	}
	if msg == nil {
		return false
	}
	env := Env{
		RoomId:  msg.RoomId,
		UserId:  msg.UserId,
		Content: msg.Content,
		Author: Author{
			Id:    msg.User.Id,
			Name:  msg.User.Name,
			Email: msg.User.Email,
		},
		Created: msg.CreatedAt.Unix(),
	}
	res, err := expr.Run(f.program, env)
	if err != nil {
		globals.AppLogger.Error("could not run filter", "filter", f.source, "error", err)
		return false
	}
	ok, _ := res.(bool)
	return ok
}

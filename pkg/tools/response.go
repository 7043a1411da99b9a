package tools

import (
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
)

// Response is the envelope every tool returns
type Response struct {
	Data            interface{}      `json:"data"`
	DataDescription []string         `json:"data_description,omitempty"`
	Notes           []string         `json:"notes,omitempty"`
	Instructions    []string         `json:"instructions,omitempty"`
	Pagination      *pagination.Info `json:"pagination,omitempty"`
}

func respond(data interface{}) *Response {
	return &Response{Data: data}
}

func (r *Response) withNotes(notes ...string) *Response {
	r.Notes = append(r.Notes, notes...)
	return r
}

func (r *Response) withDescription(lines ...string) *Response {
	r.DataDescription = append(r.DataDescription, lines...)
	return r
}

func (r *Response) withInstructions(lines ...string) *Response {
	r.Instructions = append(r.Instructions, lines...)
	return r
}

func (r *Response) withPagination(info *pagination.Info) *Response {
	r.Pagination = info
	return r
}

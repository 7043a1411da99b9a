package pagination

// CursorParam is the argument name every paginated tool accepts
const CursorParam = "cursor"

// NextRequest identifies the tool call a page belongs to. Params holds
// every argument that must be repeated on the follow-up call.
type NextRequest struct {
	ToolName string
	Params   map[string]interface{}
}

// NextCall tells the caller exactly how to fetch the following page
type NextCall struct {
	ToolName string                 `json:"tool_name"`
	Params   map[string]interface{} `json:"params"`
}

// Info is the pagination block of a tool response
type Info struct {
	NextCall NextCall `json:"next_call"`
}

// Page is one slice of a result set
type Page[T any] struct {
	Items []T
	Next  *Info
}

// Extractor returns the minimal parameters needed to resume after item
type Extractor[T any] func(item T) (Params, error)

// Paginate bounds items to pageSize and describes the next call.
//
// When more than pageSize items are given, the first pageSize are kept and
// the cursor is built from the last kept item. When force is set, a
// non-empty list that fits in one page still gets a next call anchored at
// its last item; this is used when upstream filtering makes it impossible
// to tell whether more data exists. Items are never reordered.
func Paginate[T any](items []T, pageSize int, req NextRequest, extract Extractor[T], force bool) (Page[T], error) {
	if pageSize <= 0 || len(items) == 0 {
		return Page[T]{Items: items}, nil
	}

	var anchor T
	switch {
	case len(items) > pageSize:
		items = items[:pageSize]
		anchor = items[pageSize-1]
	case force:
		anchor = items[len(items)-1]
	default:
		return Page[T]{Items: items}, nil
	}

	cursorParams, err := extract(anchor)
	if err != nil {
		return Page[T]{}, err
	}
	return Page[T]{Items: items, Next: NextPage(req, cursorParams)}, nil
}

// NextPage builds the pagination block for resuming at cursorParams.
// It returns nil when cursorParams is empty.
func NextPage(req NextRequest, cursorParams Params) *Info {
	token := Encode(cursorParams)
	if token == "" {
		return nil
	}
	params := make(map[string]interface{}, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}
	params[CursorParam] = token
	return &Info{NextCall: NextCall{ToolName: req.ToolName, Params: params}}
}

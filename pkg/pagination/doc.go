// Package pagination implements opaque cursor pagination for explorer tools.
//
// It provides:
//
//   - Cursor codec: Encode and Decode turn a flat Params map into an
//     url-safe token and back
//   - Page slicer: Paginate trims a candidate list to one page and builds the
//     next-call descriptor from the last item kept
//   - Adaptive fetcher: Accumulate walks upstream pages until enough items
//     survive client-side filtering or a page ceiling is hit
//
// # Slicing a Result Set
//
//	page, err := pagination.Paginate(items, 10, pagination.NextRequest{
//	    ToolName: "get_address_logs",
//	    Params:   map[string]interface{}{"chain_id": "1", "address": addr},
//	}, func(item Log) (pagination.Params, error) {
//	    return pagination.Params{
//	        "block_number": pagination.Int(item.BlockNumber),
//	        "index":        pagination.Int(item.Index),
//	    }, nil
//	}, false)
//
// # Resuming From a Cursor
//
//	pos, err := pagination.ParsePosition(args.Cursor)
//	if err != nil {
//	    return err // wraps ErrInvalidCursor
//	}
//	if !pos.IsStart() {
//	    for k, v := range pos.Params() {
//	        query.Set(k, v.QueryString())
//	    }
//	}
package pagination

package repository

import "errors"

// ErrStockGuard is returned by DecrementStockTx when the conditional update
// matched no row: the product is gone or its stock is below the quantity.
var ErrStockGuard = errors.New("stock guard rejected update")

// paginate clamps page and limit and returns the matching offset.
func paginate(page, limit, maxLimit, defLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defLimit
	}
	return page, limit, (page - 1) * limit
}

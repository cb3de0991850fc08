// Package paging drives cursor and page-number listings of provider APIs.
package paging

import (
	"context"
	"fmt"

	"aibos-connector-sync/internal/ports"
)

// Paginate walks a provider listing page by page, calling each for every
// item. It returns the number of items handled.
//
// An authoritative page continues while it carries a next cursor. Otherwise a
// full page (len == pageSize) is taken to mean more data may exist, so N full
// pages followed by a short one cost N+1 requests.
func Paginate[T any](
	ctx context.Context,
	pageSize int,
	fetch func(ctx context.Context, cursor string) (ports.Page[T], error),
	each func(ctx context.Context, item T) error,
) (int, error) {
	if pageSize <= 0 {
		return 0, fmt.Errorf("invalid page size %d", pageSize)
	}

	count := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return count, fmt.Errorf("failed to fetch page: %w", err)
		}

		for _, item := range page.Items {
			if err := each(ctx, item); err != nil {
				return count, err
			}
			count++
		}

		if !hasNextPage(page, pageSize) {
			return count, nil
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			return count, fmt.Errorf("pagination cursor did not advance past %q", cursor)
		}
		cursor = page.NextCursor
	}
}

func hasNextPage[T any](page ports.Page[T], pageSize int) bool {
	if page.Authoritative {
		return page.NextCursor != ""
	}
	return len(page.Items) == pageSize
}

// Package scanner implements the full scanner (C9): a paginated GraphQL
// indexer client that enumerates every borrower with an open position, and
// a batched getUserAccountData sweep (via the shared multicall client)
// that classifies each borrower into the Liquidatable/Warm/Healthy
// cohorts. Grounded on `kargakis/liquidatoor`'s `BorrowerCache`/
// `ShortfallCheck` batch-read-then-filter pattern; the GraphQL paging
// client follows `0xtitan6-polymarket-mm`'s `go-resty/resty/v2` usage for
// off-chain HTTP.
package scanner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
)

// IndexerClient pages through a subgraph-style GraphQL endpoint listing
// every borrower with a nonzero debt position.
type IndexerClient struct {
	http     *resty.Client
	endpoint string
}

// NewIndexerClient builds an IndexerClient against endpoint.
func NewIndexerClient(endpoint string) *IndexerClient {
	return &IndexerClient{
		http:     resty.New().SetTimeout(defaultHTTPTimeout),
		endpoint: endpoint,
	}
}

const borrowersQuery = `query Borrowers($first: Int!, $skip: Int!) {
  borrowers(first: $first, skip: $skip, where: { debtBase_gt: "0" }) {
    id
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type borrowersResponse struct {
	Data struct {
		Borrowers []struct {
			ID string `json:"id"`
		} `json:"borrowers"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchPage fetches one page of borrowers starting at skip, returning up
// to pageSize addresses.
func (c *IndexerClient) FetchPage(ctx context.Context, skip, pageSize int) ([]common.Address, error) {
	var parsed borrowersResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(graphQLRequest{
			Query:     borrowersQuery,
			Variables: map[string]any{"first": pageSize, "skip": skip},
		}).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("indexer request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode())
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("indexer graphql error: %s", parsed.Errors[0].Message)
	}

	addrs := make([]common.Address, 0, len(parsed.Data.Borrowers))
	for _, b := range parsed.Data.Borrowers {
		addrs = append(addrs, common.HexToAddress(b.ID))
	}
	return addrs, nil
}

// FetchAll pages through the full borrower set until a short page is
// returned.
func (c *IndexerClient) FetchAll(ctx context.Context, pageSize int) ([]common.Address, error) {
	var all []common.Address
	skip := 0
	for {
		page, err := c.FetchPage(ctx, skip, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		skip += pageSize
	}
}

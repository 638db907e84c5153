package provider

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/model"
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// PrimaryClient 带 Key 的指标 API，按 id 直接 GET
type PrimaryClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	now     func() time.Time
}

type primaryTweetsResponse struct {
	Status  string         `json:"status"`
	Msg     string         `json:"msg"`
	Message string         `json:"message"`
	Tweets  []primaryTweet `json:"tweets"`
}

type primaryTweet struct {
	ID            string  `json:"id"`
	ViewCount     FlexInt `json:"viewCount"`
	LikeCount     FlexInt `json:"likeCount"`
	RetweetCount  FlexInt `json:"retweetCount"`
	ReplyCount    FlexInt `json:"replyCount"`
	QuoteCount    FlexInt `json:"quoteCount"`
	BookmarkCount FlexInt `json:"bookmarkCount"`
}

type primaryUserResponse struct {
	Status  string       `json:"status"`
	Msg     string       `json:"msg"`
	Message string       `json:"message"`
	Data    *primaryUser `json:"data"`
}

type primaryUser struct {
	UserName  string  `json:"userName"`
	Followers FlexInt `json:"followers"`
	Following FlexInt `json:"following"`
}

func NewPrimaryClient(ep config.ProviderEndpoint, userAgent string) *PrimaryClient {
	return &PrimaryClient{
		http:    newRestyClient(ep.BaseURL, ep.Timeout, userAgent).SetHeader("Accept", "application/json"),
		limiter: endpointLimiter(ep),
		now:     time.Now,
	}
}

func (c *PrimaryClient) Name() Name { return NamePrimary }

func (c *PrimaryClient) RequiresCredential() bool { return true }

func (c *PrimaryClient) Supports(kind model.EntityKind) bool {
	return kind == model.EntityKindPost || kind == model.EntityKindProfile
}

func (c *PrimaryClient) FetchEntityMetrics(ctx context.Context, ref Reference, cred *Credential) (*RawResult, error) {
	if cred == nil || cred.APIKey == "" {
		return nil, errors.Wrap(ErrTransient, "primary: missing api key")
	}
	if err := waitTurn(ctx, c.limiter, NamePrimary); err != nil {
		return nil, err
	}
	switch ref.Kind {
	case model.EntityKindPost:
		return c.fetchTweet(ctx, ref, cred.APIKey)
	case model.EntityKindProfile:
		return c.fetchUser(ctx, ref, cred.APIKey)
	default:
		return nil, unsupportedKind(NamePrimary, ref)
	}
}

func (c *PrimaryClient) fetchTweet(ctx context.Context, ref Reference, apiKey string) (*RawResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-API-Key", apiKey).
		SetQueryParam("tweet_ids", ref.PostID).
		Get("/twitter/tweets")
	if err != nil {
		return nil, transportError(NamePrimary, err)
	}
	if err = classifyStatus(NamePrimary, resp); err != nil {
		return nil, err
	}

	var body primaryTweetsResponse
	if err = decodeBody(NamePrimary, resp.Body(), &body); err != nil {
		return nil, err
	}
	if !strings.EqualFold(body.Status, "success") {
		return nil, primaryStatusError(body.Status, body.Msg+body.Message)
	}

	for _, t := range body.Tweets {
		if t.ID != "" && t.ID != ref.PostID {
			continue
		}
		return &RawResult{
			Provider: NamePrimary,
			Counters: model.Counters{
				Impressions: firstOf(t.ViewCount),
				Likes:       firstOf(t.LikeCount),
				Reshares:    firstOf(t.RetweetCount),
				Replies:     firstOf(t.ReplyCount),
				Quotes:      firstOf(t.QuoteCount),
				Bookmarks:   firstOf(t.BookmarkCount),
			},
			FetchedAt: c.now(),
		}, nil
	}
	// 200 但没有数据：交给链判定为空结果
	return &RawResult{Provider: NamePrimary, FetchedAt: c.now()}, nil
}

func (c *PrimaryClient) fetchUser(ctx context.Context, ref Reference, apiKey string) (*RawResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-API-Key", apiKey).
		SetQueryParam("userName", ref.Handle).
		Get("/twitter/user/info")
	if err != nil {
		return nil, transportError(NamePrimary, err)
	}
	if err = classifyStatus(NamePrimary, resp); err != nil {
		return nil, err
	}

	var body primaryUserResponse
	if err = decodeBody(NamePrimary, resp.Body(), &body); err != nil {
		return nil, err
	}
	if !strings.EqualFold(body.Status, "success") {
		return nil, primaryStatusError(body.Status, body.Msg+body.Message)
	}
	if body.Data == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "primary: user data missing")
	}

	return &RawResult{
		Provider: NamePrimary,
		Counters: model.Counters{
			Followers: firstOf(body.Data.Followers),
			Following: firstOf(body.Data.Following),
		},
		FetchedAt: c.now(),
	}, nil
}

func primaryStatusError(status, msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist") || strings.Contains(lower, "suspended") {
		return errors.Wrapf(ErrNotFound, "primary: %s", msg)
	}
	return errors.Wrapf(ErrTransient, "primary: status %q: %s", status, msg)
}

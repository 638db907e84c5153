package provider

import (
	"Tracklight/internal/model"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidReference = errors.New("provider: invalid entity reference")

var (
	postIDPattern = regexp.MustCompile(`^\d{1,20}$`)
	handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
	statusPath    = regexp.MustCompile(`^/([A-Za-z0-9_]{1,15})/status(?:es)?/(\d{1,20})`)
)

var knownHosts = map[string]struct{}{
	"x.com":              {},
	"twitter.com":        {},
	"www.x.com":          {},
	"www.twitter.com":    {},
	"mobile.x.com":       {},
	"mobile.twitter.com": {},
}

// reservedPaths 这些路径不是用户主页
var reservedPaths = map[string]struct{}{
	"home": {}, "explore": {}, "i": {}, "search": {}, "settings": {}, "notifications": {}, "messages": {},
}

// Reference 实体在外部平台上的定位
type Reference struct {
	Kind   model.EntityKind
	PostID string
	Handle string
	URL    string
}

// ID 数据源查询使用的标识
func (r Reference) ID() string {
	if r.Kind == model.EntityKindProfile {
		return r.Handle
	}
	return r.PostID
}

// ParseReference 从 URL 或原生 id 解析实体定位，原生 id 优先
func ParseReference(kind model.EntityKind, rawURL, nativeID string) (Reference, error) {
	ref := Reference{Kind: kind, URL: rawURL}
	nativeID = strings.TrimPrefix(strings.TrimSpace(nativeID), "@")

	switch kind {
	case model.EntityKindPost:
		if nativeID != "" && postIDPattern.MatchString(nativeID) {
			ref.PostID = nativeID
		}
		if path, ok := parseHostPath(rawURL); ok {
			if m := statusPath.FindStringSubmatch(path); m != nil {
				ref.Handle = m[1]
				if ref.PostID == "" {
					ref.PostID = m[2]
				}
			}
		}
		if ref.PostID == "" {
			return Reference{}, errors.Wrapf(ErrInvalidReference, "post reference %q", rawURL)
		}
	case model.EntityKindProfile:
		if nativeID != "" && handlePattern.MatchString(nativeID) {
			ref.Handle = nativeID
		} else if path, ok := parseHostPath(rawURL); ok {
			seg := strings.TrimPrefix(strings.Trim(path, "/"), "@")
			if handlePattern.MatchString(seg) {
				if _, reserved := reservedPaths[strings.ToLower(seg)]; !reserved {
					ref.Handle = seg
				}
			}
		}
		if ref.Handle == "" {
			return Reference{}, errors.Wrapf(ErrInvalidReference, "profile reference %q", rawURL)
		}
	default:
		return Reference{}, errors.Wrapf(ErrInvalidReference, "unknown kind %q", kind)
	}
	return ref, nil
}

func parseHostPath(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	if _, ok := knownHosts[strings.ToLower(u.Host)]; !ok {
		return "", false
	}
	return u.Path, true
}

package discord

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const commandPrefix = "!"

var (
	userRefPattern    = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelRefPattern = regexp.MustCompile(`^<#(\d+)>$`)
	snowflakePattern  = regexp.MustCompile(`^\d{5,20}$`)
)

// parsePrefix splits "!name rest" into the lowered command name and the raw
// argument text.
func parsePrefix(content string) (string, string, bool) {
	content = strings.TrimLeftFunc(content, unicode.IsSpace)
	if !strings.HasPrefix(content, commandPrefix) {
		return "", "", false
	}
	body := strings.TrimPrefix(content, commandPrefix)
	end := strings.IndexFunc(body, unicode.IsSpace)
	if end < 0 {
		end = len(body)
	}
	name := strings.ToLower(body[:end])
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(body[end:]), true
}

// bindArgs assigns whitespace separated tokens of raw to options in order.
// A trailing text option receives the remainder verbatim.
func bindArgs(raw string, opts []option) (map[string]string, error) {
	args := make(map[string]string, len(opts))
	rest := strings.TrimSpace(raw)
	for i, opt := range opts {
		if rest == "" {
			if opt.Required {
				return nil, fmt.Errorf("missing argument `%s`", opt.Name)
			}
			continue
		}
		if opt.Kind == optLongText && i == len(opts)-1 {
			args[opt.Name] = rest
			rest = ""
			break
		}
		token := rest
		if end := strings.IndexFunc(rest, unicode.IsSpace); end >= 0 {
			token, rest = rest[:end], strings.TrimSpace(rest[end:])
		} else {
			rest = ""
		}
		value, err := normalizeArg(opt, token)
		if err != nil {
			return nil, err
		}
		args[opt.Name] = value
	}
	return args, nil
}

func normalizeArg(opt option, token string) (string, error) {
	switch opt.Kind {
	case optUser:
		if id, ok := parseUserRef(token); ok {
			return id, nil
		}
		return "", fmt.Errorf("`%s` is not a user mention", token)
	case optChannel:
		if id, ok := parseChannelRef(token); ok {
			return id, nil
		}
		return "", fmt.Errorf("`%s` is not a channel mention", token)
	default:
		return token, nil
	}
}

// parseUserRef accepts <@id>, <@!id> or a bare id.
func parseUserRef(s string) (string, bool) {
	if m := userRefPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if snowflakePattern.MatchString(s) {
		return s, true
	}
	return "", false
}

// parseChannelRef accepts <#id> or a bare id.
func parseChannelRef(s string) (string, bool) {
	if m := channelRefPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if snowflakePattern.MatchString(s) {
		return s, true
	}
	return "", false
}

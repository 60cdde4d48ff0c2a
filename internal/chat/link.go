package chat

import "net/url"

// AuthLink builds the authentication page link for a sender.
func AuthLink(baseURL, phoneNumber string) string {
	return baseURL + "/auth?phone=" + url.QueryEscape(phoneNumber)
}

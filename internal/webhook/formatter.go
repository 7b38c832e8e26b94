// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"fmt"
	"time"

	"github.com/dotandev/lockup/internal/eventbus"
	"github.com/dotandev/lockup/internal/sale"
)

// Notice is one sale event as delivered to webhooks.
type Notice struct {
	ID          string    `json:"id"`
	Event       string    `json:"event"`
	Participant string    `json:"participant"`
	Amount      string    `json:"amount"`
	Tokens      string    `json:"tokens,omitempty"`
	Allocated   string    `json:"allocated"`
	Claimed     string    `json:"claimed,omitempty"`
	SaleSold    string    `json:"sale_sold"`
	SaleClaimed string    `json:"sale_claimed"`
	At          time.Time `json:"at"`
}

// NoticeFromEvent converts sale bus events; other payloads are skipped.
func NoticeFromEvent(ev eventbus.Event) (Notice, bool) {
	switch p := ev.Payload.(type) {
	case sale.ContributedEvent:
		return Notice{
			ID:          p.Receipt.ID,
			Event:       string(ev.Topic),
			Participant: p.Receipt.Participant,
			Amount:      p.Receipt.Accepted.String(),
			Tokens:      p.Receipt.Tokens.String(),
			Allocated:   p.Receipt.Allocated.String(),
			SaleSold:    p.Totals.Allocated.String(),
			SaleClaimed: p.Totals.Claimed.String(),
			At:          p.Receipt.At,
		}, true
	case sale.ClaimedEvent:
		return Notice{
			ID:          p.Receipt.ID,
			Event:       string(ev.Topic),
			Participant: p.Receipt.Participant,
			Amount:      p.Receipt.Amount.String(),
			Allocated:   p.Receipt.Allocated.String(),
			Claimed:     p.Receipt.Claimed.String(),
			SaleSold:    p.Totals.Allocated.String(),
			SaleClaimed: p.Totals.Claimed.String(),
			At:          p.Receipt.At,
		}, true
	default:
		return Notice{}, false
	}
}

func (n Notice) headline() string {
	if n.Event == string(sale.TopicClaimed) {
		return fmt.Sprintf("%s claimed %s tokens", n.Participant, n.Amount)
	}
	return fmt.Sprintf("%s contributed %s for %s tokens", n.Participant, n.Amount, n.Tokens)
}

// SlackMessage represents Slack webhook payload
type SlackMessage struct {
	Blocks []interface{} `json:"blocks"`
	Text   string        `json:"text"`
}

// DiscordMessage represents Discord webhook payload
type DiscordMessage struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title     string              `json:"title"`
	Color     int                 `json:"color"`
	Fields    []DiscordEmbedField `json:"fields"`
	Timestamp string              `json:"timestamp"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func FormatSlackMessage(n Notice) SlackMessage {
	header := map[string]interface{}{
		"type": "header",
		"text": map[string]interface{}{
			"type": "plain_text",
			"text": n.headline(),
		},
	}
	fields := map[string]interface{}{
		"type": "section",
		"fields": []interface{}{
			map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Allocated:*\n%s", n.Allocated)},
			map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Sale sold:*\n%s", n.SaleSold)},
			map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Sale claimed:*\n%s", n.SaleClaimed)},
			map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Receipt:*\n`%s`", n.ID)},
		},
	}
	return SlackMessage{
		Blocks: []interface{}{header, fields},
		Text:   n.headline(),
	}
}

const (
	discordGreen = 0x2ECC71
	discordBlue  = 0x3498DB
)

func FormatDiscordMessage(n Notice) DiscordMessage {
	color := discordGreen
	if n.Event == string(sale.TopicClaimed) {
		color = discordBlue
	}
	return DiscordMessage{
		Username: "saled",
		Content:  n.headline(),
		Embeds: []DiscordEmbed{{
			Title: n.Event,
			Color: color,
			Fields: []DiscordEmbedField{
				{Name: "Allocated", Value: n.Allocated, Inline: true},
				{Name: "Sale sold", Value: n.SaleSold, Inline: true},
				{Name: "Sale claimed", Value: n.SaleClaimed, Inline: true},
				{Name: "Receipt", Value: n.ID},
			},
			Timestamp: n.At.UTC().Format(time.RFC3339),
		}},
	}
}

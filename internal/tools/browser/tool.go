package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/haasonsaas/agentcore/internal/agent"
)

var schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": ["navigate", "go_back", "go_forward", "reload", "click",
               "double_click", "hover", "type", "press_key", "select_option",
               "check", "uncheck", "scroll", "screenshot", "extract_text",
               "extract_html", "get_url", "get_title", "wait_for_element",
               "wait_for_navigation", "execute_js", "close"],
      "description": "The browser action to perform"
    },
    "url": {"type": "string", "description": "URL (navigate)"},
    "selector": {"type": "string", "description": "CSS selector for the target element"},
    "text": {"type": "string", "description": "Text to type (type)"},
    "key": {"type": "string", "description": "Key name, e.g. Enter (press_key)"},
    "value": {"type": "string", "description": "Option value (select_option)"},
    "script": {"type": "string", "description": "JavaScript to evaluate (execute_js)"},
    "delta_y": {"type": "integer", "description": "Vertical scroll distance in pixels (scroll)"},
    "timeout": {"type": "integer", "minimum": 1, "description": "Timeout in milliseconds for wait actions"},
    "full_page": {"type": "boolean", "description": "Capture the full page (screenshot)"}
  },
  "required": ["action"],
  "additionalProperties": false
}`)

type actionInput struct {
	Action   string  `json:"action"`
	URL      string  `json:"url"`
	Selector string  `json:"selector"`
	Text     string  `json:"text"`
	Key      string  `json:"key"`
	Value    string  `json:"value"`
	Script   string  `json:"script"`
	DeltaY   int     `json:"delta_y"`
	Timeout  float64 `json:"timeout"`
	FullPage bool    `json:"full_page"`
}

// NewTool builds the browser tool over driver.
func NewTool(driver *Driver) *agent.Tool {
	return &agent.Tool{
		Name:          "browser",
		Description:   "Automate a headless browser: navigation, clicking, typing, screenshots, content extraction, and JavaScript evaluation.",
		Schema:        schema,
		NeedsApproval: true,
		Durability:    agent.Durability{Enabled: true},
		Handler: func(ctx context.Context, raw json.RawMessage, tc *agent.ToolContext) (string, error) {
			var in actionInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", agent.NewToolError(agent.ErrCodeValidationFailed, "browser", "invalid input").WithCause(err)
			}
			page, err := driver.Page()
			if err != nil {
				return "", err
			}
			return dispatch(driver, page, in)
		},
	}
}

func dispatch(driver *Driver, page playwright.Page, in actionInput) (string, error) {
	switch in.Action {
	case "navigate":
		if in.URL == "" {
			return "", missing("navigate", "url")
		}
		if _, err := page.Goto(in.URL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return "", failed("navigation", err)
		}
		return fmt.Sprintf("navigated to %s", in.URL), nil

	case "go_back":
		if _, err := page.GoBack(); err != nil {
			return "", failed("go_back", err)
		}
		return "went back", nil

	case "go_forward":
		if _, err := page.GoForward(); err != nil {
			return "", failed("go_forward", err)
		}
		return "went forward", nil

	case "reload":
		if _, err := page.Reload(); err != nil {
			return "", failed("reload", err)
		}
		return "reloaded", nil

	case "click":
		if in.Selector == "" {
			return "", missing("click", "selector")
		}
		if err := page.Click(in.Selector); err != nil {
			return "", failed("click", err)
		}
		return fmt.Sprintf("clicked %s", in.Selector), nil

	case "double_click":
		if in.Selector == "" {
			return "", missing("double_click", "selector")
		}
		if err := page.Dblclick(in.Selector); err != nil {
			return "", failed("double_click", err)
		}
		return fmt.Sprintf("double-clicked %s", in.Selector), nil

	case "hover":
		if in.Selector == "" {
			return "", missing("hover", "selector")
		}
		if err := page.Hover(in.Selector); err != nil {
			return "", failed("hover", err)
		}
		return fmt.Sprintf("hovering %s", in.Selector), nil

	case "type":
		if in.Selector == "" {
			return "", missing("type", "selector")
		}
		if err := page.Fill(in.Selector, in.Text); err != nil {
			return "", failed("type", err)
		}
		return fmt.Sprintf("typed into %s", in.Selector), nil

	case "press_key":
		if in.Key == "" {
			return "", missing("press_key", "key")
		}
		if err := page.Keyboard().Press(in.Key); err != nil {
			return "", failed("press_key", err)
		}
		return fmt.Sprintf("pressed %s", in.Key), nil

	case "select_option":
		if in.Selector == "" || in.Value == "" {
			return "", missing("select_option", "selector and value")
		}
		if _, err := page.SelectOption(in.Selector, playwright.SelectOptionValues{
			Values: &[]string{in.Value},
		}); err != nil {
			return "", failed("select_option", err)
		}
		return fmt.Sprintf("selected %s", in.Value), nil

	case "check":
		if in.Selector == "" {
			return "", missing("check", "selector")
		}
		if err := page.Check(in.Selector); err != nil {
			return "", failed("check", err)
		}
		return fmt.Sprintf("checked %s", in.Selector), nil

	case "uncheck":
		if in.Selector == "" {
			return "", missing("uncheck", "selector")
		}
		if err := page.Uncheck(in.Selector); err != nil {
			return "", failed("uncheck", err)
		}
		return fmt.Sprintf("unchecked %s", in.Selector), nil

	case "scroll":
		if _, err := page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", in.DeltaY)); err != nil {
			return "", failed("scroll", err)
		}
		return fmt.Sprintf("scrolled %d", in.DeltaY), nil

	case "screenshot":
		shot, err := page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(in.FullPage),
			Type:     playwright.ScreenshotTypePng,
		})
		if err != nil {
			return "", failed("screenshot", err)
		}
		return base64.StdEncoding.EncodeToString(shot), nil

	case "extract_text":
		selector := in.Selector
		if selector == "" {
			selector = "body"
		}
		text, err := page.TextContent(selector)
		if err != nil {
			return "", failed("extract_text", err)
		}
		return text, nil

	case "extract_html":
		if in.Selector == "" {
			html, err := page.Content()
			if err != nil {
				return "", failed("extract_html", err)
			}
			return html, nil
		}
		result, err := page.Evaluate(fmt.Sprintf("document.querySelector(%q).innerHTML", in.Selector))
		if err != nil {
			return "", failed("extract_html", err)
		}
		return fmt.Sprintf("%v", result), nil

	case "get_url":
		return page.URL(), nil

	case "get_title":
		title, err := page.Title()
		if err != nil {
			return "", failed("get_title", err)
		}
		return title, nil

	case "wait_for_element":
		if in.Selector == "" {
			return "", missing("wait_for_element", "selector")
		}
		timeout := in.Timeout
		if timeout == 0 {
			timeout = float64(defaultTimeout.Milliseconds())
		}
		if _, err := page.WaitForSelector(in.Selector, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(timeout),
		}); err != nil {
			return "", failed("wait_for_element", err)
		}
		return fmt.Sprintf("element appeared: %s", in.Selector), nil

	case "wait_for_navigation":
		timeout := in.Timeout
		if timeout == 0 {
			timeout = float64(defaultTimeout.Milliseconds())
		}
		if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			Timeout: playwright.Float(timeout),
		}); err != nil {
			return "", failed("wait_for_navigation", err)
		}
		return "navigation completed", nil

	case "execute_js":
		if in.Script == "" {
			return "", missing("execute_js", "script")
		}
		result, err := page.Evaluate(in.Script)
		if err != nil {
			return "", failed("execute_js", err)
		}
		return fmt.Sprintf("%v", result), nil

	case "close":
		if err := driver.ClosePage(); err != nil {
			return "", failed("close", err)
		}
		return "page closed", nil
	}
	return "", agent.NewToolError(agent.ErrCodeValidationFailed, "browser",
		fmt.Sprintf("unknown action %q", in.Action))
}

func missing(action, field string) error {
	return agent.NewToolError(agent.ErrCodeValidationFailed, "browser",
		fmt.Sprintf("%s requires %s", action, field))
}

func failed(action string, err error) error {
	return agent.NewToolError(agent.ErrCodeExecutionFailed, "browser",
		fmt.Sprintf("%s failed", action)).WithCause(err)
}

package browser

import (
	"encoding/json"
	"fmt"
)

const (
	// maxInventoryPerCategory caps each element category so a dense
	// page cannot blow up the persisted inventory.
	maxInventoryPerCategory = 200

	// maxInventoryText bounds the trimmed inner text per element.
	maxInventoryText = 160
)

// inventoryScript runs inside the page. It receives its parameters as
// a value argument and returns plain JSON data; it never reaches back
// into host state.
const inventoryScript = `(args) => {
	const cap = args.cap;
	const maxText = args.maxText;

	const esc = (s) => (window.CSS && CSS.escape) ? CSS.escape(s) : s;
	const visible = (el) => el.offsetParent !== null;
	const trim = (s) => (s || '').replace(/\s+/g, ' ').trim().slice(0, maxText);

	const selectorFor = (el) => {
		if (el.id) return '#' + esc(el.id);
		const parts = [];
		let node = el;
		let depth = 0;
		while (node && node.nodeType === 1 && node.tagName !== 'BODY' && depth < 6) {
			if (node.id) {
				parts.unshift('#' + esc(node.id));
				break;
			}
			let part = node.tagName.toLowerCase();
			const name = node.getAttribute('name');
			const hook = node.getAttribute('data-testid')
				|| node.getAttribute('data-test')
				|| node.getAttribute('data-qa');
			if (name) {
				part += '[name="' + name + '"]';
			} else if (hook) {
				const attr = node.hasAttribute('data-testid') ? 'data-testid'
					: node.hasAttribute('data-test') ? 'data-test' : 'data-qa';
				part += '[' + attr + '="' + hook + '"]';
			} else {
				const parent = node.parentElement;
				if (parent) {
					const sameTag = Array.from(parent.children)
						.filter((c) => c.tagName === node.tagName);
					if (sameTag.length > 1) {
						part += ':nth-of-type(' + (sameTag.indexOf(node) + 1) + ')';
					}
				}
			}
			parts.unshift(part);
			node = node.parentElement;
			depth++;
		}
		return parts.join(' > ');
	};

	const describe = (el) => ({
		tag: el.tagName.toLowerCase(),
		id: el.id || '',
		name: el.getAttribute('name') || '',
		type: el.getAttribute('type') || '',
		text: trim(el.innerText),
		placeholder: el.getAttribute('placeholder') || '',
		ariaLabel: el.getAttribute('aria-label') || '',
		role: el.getAttribute('role') || '',
		selector: selectorFor(el),
	});

	const truncated = {};
	const gather = (key, selector) => {
		let list = Array.from(document.querySelectorAll(selector)).filter(visible);
		if (list.length > cap) {
			truncated[key] = true;
			list = list.slice(0, cap);
		}
		return list.map(describe);
	};

	return {
		url: location.href,
		inputs: gather('inputs', 'input, textarea, select'),
		buttons: gather('buttons', 'button, input[type="submit"], input[type="button"]'),
		links: gather('links', 'a[href]'),
		headings: gather('headings', 'h1, h2, h3, h4, h5, h6'),
		forms: gather('forms', 'form'),
		truncated: truncated,
	};
}`

// CollectInventory enumerates the visible interactive surface of the
// page. Only elements with a layout box (offsetParent set) count; each
// category is capped and the caps are recorded in Truncated.
func (s *Session) CollectInventory() (*UIInventory, error) {
	result, err := s.Page.Evaluate(inventoryScript, map[string]any{
		"cap":     maxInventoryPerCategory,
		"maxText": maxInventoryText,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory evaluation failed: %w", err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("inventory result not serializable: %w", err)
	}
	var inventory UIInventory
	if err := json.Unmarshal(raw, &inventory); err != nil {
		return nil, fmt.Errorf("inventory result malformed: %w", err)
	}
	return &inventory, nil
}

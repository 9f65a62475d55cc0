package browser

import (
	"encoding/json"
	"fmt"
)

// hookJS installs the mutation hook. Each observer callback that adds qualifying images
// appends one batch to window.__grokcapture.batches; drainJS takes them.
const hookJS = `(imgSel, textSel, maxDepth) => {
	const w = window;
	if (w.__grokcapture) return true;
	const state = { batches: [], imgSel, textSel, maxDepth };
	w.__grokcapture = state;

	state.describe = (img) => {
		const levels = [];
		let node = img.parentElement;
		for (let d = 0; d < state.maxDepth && node; d++) {
			const texts = [];
			node.querySelectorAll(state.textSel).forEach((el) => {
				const t = (el.textContent || '').trim();
				if (t) texts.push(t);
			});
			levels.push(texts);
			node = node.parentElement;
		}
		return { ref: img.src || '', levels };
	};

	const start = () => {
		const obs = new MutationObserver((mutations) => {
			const batch = [];
			mutations.forEach((m) => {
				if (m.type !== 'childList') return;
				m.addedNodes.forEach((node) => {
					if (node.nodeType !== Node.ELEMENT_NODE) return;
					try {
						if (node.matches && node.matches(state.imgSel)) batch.push(state.describe(node));
						node.querySelectorAll(state.imgSel).forEach((img) => batch.push(state.describe(img)));
					} catch (e) {}
				});
			});
			if (batch.length) state.batches.push(batch);
		});
		obs.observe(document.body || document.documentElement, { childList: true, subtree: true });
	};
	if (document.body) {
		start();
	} else {
		document.addEventListener('DOMContentLoaded', start, { once: true });
	}
	return true;
}`

const drainJS = `() => {
	const state = window.__grokcapture;
	if (!state) return [];
	const out = state.batches;
	state.batches = [];
	return out;
}`

const scanJS = `(imgSel, textSel, maxDepth) => {
	const state = window.__grokcapture;
	const describe = state ? state.describe : null;
	const out = [];
	document.querySelectorAll(imgSel).forEach((img) => {
		if (describe) {
			out.push(describe(img));
			return;
		}
		const levels = [];
		let node = img.parentElement;
		for (let d = 0; d < maxDepth && node; d++) {
			const texts = [];
			node.querySelectorAll(textSel).forEach((el) => {
				const t = (el.textContent || '').trim();
				if (t) texts.push(t);
			});
			levels.push(texts);
			node = node.parentElement;
		}
		out.push({ ref: img.src || '', levels });
	});
	return out;
}`

const fetchJS = `async (ref) => {
	const resp = await fetch(ref);
	if (!resp.ok) return { status: resp.status, data: '' };
	const bytes = new Uint8Array(await resp.arrayBuffer());
	let bin = '';
	for (let i = 0; i < bytes.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, bytes.subarray(i, i + 0x8000));
	}
	return { status: resp.status, data: btoa(bin) };
}`

// bootstrapJS wraps hookJS into a self-invoking script for Page.addScriptToEvaluateOnNewDocument.
func bootstrapJS(cfg Config) (string, error) {
	imgSel, err := json.Marshal(cfg.ImageSelector)
	if err != nil {
		return "", err
	}
	textSel, err := json.Marshal(cfg.TextSelector)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)(%s, %s, %d);", hookJS, imgSel, textSel, cfg.MaxDepth), nil
}

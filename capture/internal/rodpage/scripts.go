package rodpage

// registryJS installs window.__devlens: a handle registry mapping integer
// ids to live nodes (held weakly), the picking flag consulted by the event
// listeners, and the cursor saved while the overlay is mounted.
const registryJS = `() => {
	if (window.__devlens) return;
	const nodes = [null];
	const ids = new WeakMap();
	window.__devlens = {
		picking: false,
		listening: false,
		cursor: null,
		ref(el) {
			if (!el) return 0;
			let id = ids.get(el);
			if (id === undefined) {
				id = nodes.length;
				nodes.push(new WeakRef(el));
				ids.set(el, id);
			}
			return id;
		},
		get(id) {
			const w = nodes[id];
			return w ? (w.deref() || null) : null;
		},
	};
}`

// listenerJS forwards pointer and key events to the Go binding named by
// its argument. Listeners run in the capture phase so page handlers never
// see clicks made while picking.
const listenerJS = `(binding) => {
	const r = window.__devlens;
	if (!r || r.listening) return;
	r.listening = true;
	const send = (msg) => {
		try { window[binding](msg); } catch (_) {}
	};
	document.addEventListener('mousemove', (e) => {
		if (r.picking) send({ type: 'move', x: e.clientX, y: e.clientY });
	}, true);
	const onClick = (e) => {
		if (!r.picking) return;
		e.preventDefault();
		e.stopPropagation();
		e.stopImmediatePropagation();
		if (e.type !== 'contextmenu') send({ type: 'click', button: e.button });
	};
	for (const t of ['click', 'auxclick', 'contextmenu']) {
		document.addEventListener(t, onClick, true);
	}
	document.addEventListener('keydown', (e) => {
		if (!r.picking || e.key !== 'Escape') return;
		e.preventDefault();
		e.stopPropagation();
		send({ type: 'key', key: e.key });
	}, true);
}`

const (
	tagNameJS = `(id) => {
	const el = window.__devlens.get(id);
	return el ? el.tagName : '';
}`
	attrJS = `(id, name) => {
	const el = window.__devlens.get(id);
	return el ? (el.getAttribute(name) || '') : '';
}`
	parentJS = `(id) => {
	const el = window.__devlens.get(id);
	return el ? window.__devlens.ref(el.parentElement) : 0;
}`
	prevSiblingJS = `(id) => {
	const el = window.__devlens.get(id);
	return el ? window.__devlens.ref(el.previousElementSibling) : 0;
}`
	textJS = `(id) => {
	const el = window.__devlens.get(id);
	return el instanceof HTMLElement ? el.innerText : null;
}`
	elementAtJS = `(x, y) => window.__devlens.ref(document.elementFromPoint(x, y))`
	boxJS       = `(id) => {
	const el = window.__devlens.get(id);
	if (!el) return { x: 0, y: 0, width: 0, height: 0 };
	const r = el.getBoundingClientRect();
	return { x: r.x, y: r.y, width: r.width, height: r.height };
}`
	scrollJS = `() => ({ x: window.scrollX, y: window.scrollY })`
	styleJS  = `(id, props) => {
	const el = window.__devlens.get(id);
	if (!el) return {};
	const cs = window.getComputedStyle(el);
	const out = {};
	for (const p of props) out[p] = cs.getPropertyValue(p);
	return out;
}`
	mountJS = `(id, css, cursor) => {
	const r = window.__devlens;
	const ov = document.createElement('div');
	ov.id = id;
	ov.style.cssText = css;
	(document.body || document.documentElement).appendChild(ov);
	if (document.body) {
		if (r.cursor === null) r.cursor = document.body.style.cursor;
		document.body.style.cursor = cursor;
	}
	return r.ref(ov);
}`
	moveJS = `(id, x, y, w, h) => {
	const ov = window.__devlens.get(id);
	if (!ov) return;
	ov.style.top = y + 'px';
	ov.style.left = x + 'px';
	ov.style.width = w + 'px';
	ov.style.height = h + 'px';
}`
	removeJS = `(id) => {
	const r = window.__devlens;
	const ov = r.get(id);
	if (ov) ov.remove();
	if (document.body && r.cursor !== null) document.body.style.cursor = r.cursor;
	r.cursor = null;
}`
	pickingJS = `(v) => { window.__devlens.picking = v; }`
	infoJS    = `() => ({
	url: location.href,
	title: document.title,
	userAgent: navigator.userAgent,
	language: navigator.language,
	platform: navigator.platform,
	width: window.innerWidth,
	height: window.innerHeight,
})`
)

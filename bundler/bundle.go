package bundler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lokascript/hyperfixi/runtime/compiler"
)

// loaderPrelude opens the bundle IIFE: the JS twin of the compiler's
// djb2 (so attribute text and compiled handlers agree on identity), the
// pinned-event shim for delayed dispatch, and the registration helper.
const loaderPrelude = `/* hyperfixi compiled handler bundle (generated) */
(function () {
  "use strict";

  var registry = Object.create(null);

  function djb2(s) {
    var h = 5381;
    for (var i = 0; i < s.length; i++) {
      h = (h * 33 + s.charCodeAt(i)) >>> 0;
    }
    return ("00000000" + h.toString(16)).slice(-8);
  }

  /* currentTarget is only live during dispatch; debounced and throttled
     handlers run later, so they get a snapshot of what compiled code
     reads. */
  function pin(ev, el) {
    return {
      type: ev.type,
      target: ev.target,
      currentTarget: el,
      detail: ev.detail,
      key: ev.key,
      preventDefault: function () {},
      stopPropagation: function () {}
    };
  }

  function wire(el, entry) {
    var handler;
    if (entry.debounce > 0) {
      var t;
      handler = function (ev) {
        if (entry.prevent) ev.preventDefault();
        if (entry.stop) ev.stopPropagation();
        var pinned = pin(ev, el);
        clearTimeout(t);
        t = setTimeout(function () { entry.fn(pinned); }, entry.debounce);
      };
    } else if (entry.throttle > 0) {
      var last = 0;
      handler = function (ev) {
        if (entry.prevent) ev.preventDefault();
        if (entry.stop) ev.stopPropagation();
        var now = Date.now();
        if (now - last >= entry.throttle) {
          last = now;
          entry.fn(pin(ev, el));
        }
      };
    } else {
      handler = entry.fn;
    }
    el.addEventListener(entry.event, handler, { once: !!entry.once });
  }

  function attach(el, code) {
    var entry = registry[djb2(code)];
    if (!entry) {
      return false;
    }
    wire(el, entry);
    return true;
  }
`

// loaderBoot closes the IIFE: walk annotated elements at load time,
// attach compiled handlers by attribute hash, queue the rest for the
// runtime interpreter.
const loaderBoot = `
  function boot() {
    var pending = [];
    var els = document.querySelectorAll("[_], [data-hs]");
    for (var i = 0; i < els.length; i++) {
      var el = els[i];
      var code = (el.getAttribute("_") || el.getAttribute("data-hs") || "").trim();
      if (!code || !attach(el, code)) {
        pending.push(el);
      }
    }
    var hf = (window.__hyperfixi = window.__hyperfixi || {});
    hf.pending = pending;
    hf.attach = attach;
    hf.hash = djb2;
  }

  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", boot);
  } else {
    boot();
  }
})();
`

// assembleBundle renders the complete bundle: prelude, handler function
// declarations in ID order, registry entries, boot. Output is
// deterministic for a fixed handler set.
func assembleBundle(handlers []*compiler.CompiledHandler) string {
	sorted := append([]*compiler.CompiledHandler(nil), handlers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	b.WriteString(loaderPrelude)
	for _, h := range sorted {
		b.WriteByte('\n')
		b.WriteString(h.Code)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, h := range sorted {
		fmt.Fprintf(&b,
			"  registry[%q] = { event: %q, fn: %s, once: %t, prevent: %t, stop: %t, debounce: %d, throttle: %d };\n",
			compiler.Hash(h.Original), h.Event, h.ID,
			h.Modifiers.Once, h.Modifiers.Prevent, h.Modifiers.Stop,
			h.Modifiers.Debounce, h.Modifiers.Throttle)
	}
	b.WriteString(loaderBoot)
	return b.String()
}

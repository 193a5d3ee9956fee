package sandbox

import (
	"strconv"
	"strings"

	"github.com/GriffinCanCode/blurguard/internal/dom"
	"github.com/dop251/goja"
)

// bindDocument exposes doc as the global document object
func (r *Runtime) bindDocument(doc *dom.Document) {
	document := r.vm.NewObject()

	_ = document.Set("URL", doc.URL())
	_ = document.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return r.wrap(doc.CreateElement(call.Argument(0).String()))
	})
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return r.wrap(doc.QuerySelector(call.Argument(0).String()))
	})
	_ = document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return r.wrapAll(doc.QuerySelectorAll(call.Argument(0).String()))
	})
	_ = document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return r.wrap(doc.GetElementByID(call.Argument(0).String()))
	})
	_ = document.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return r.wrapAll(doc.QuerySelectorAll(call.Argument(0).String()))
	})
	r.accessor(document, "body", func() goja.Value { return r.wrap(doc.Body()) }, nil)
	r.accessor(document, "documentElement", func() goja.Value { return r.wrap(doc.DocumentElement()) }, nil)

	_ = r.vm.Set("document", document)
}

// wrap returns the JS object for el, creating it once per element
func (r *Runtime) wrap(el *dom.Element) goja.Value {
	if el == nil {
		return goja.Null()
	}
	if obj, ok := r.proxies[el]; ok {
		return obj
	}

	obj := r.vm.NewObject()
	r.proxies[el] = obj
	r.owners[obj] = el

	r.accessor(obj, "tagName", func() goja.Value { return r.vm.ToValue(strings.ToUpper(el.TagName())) }, nil)
	r.attrAccessor(obj, el, "id", "id")
	r.attrAccessor(obj, el, "className", "class")
	r.attrAccessor(obj, el, "alt", "alt")
	r.attrAccessor(obj, el, "title", "title")
	r.accessor(obj, "src",
		func() goja.Value { return r.vm.ToValue(el.Src()) },
		func(v goja.Value) { el.SetAttribute("src", v.String()) })
	r.accessor(obj, "width",
		func() goja.Value { return r.vm.ToValue(el.Width()) },
		func(v goja.Value) { el.SetAttribute("width", strconv.FormatInt(v.ToInteger(), 10)) })
	r.accessor(obj, "height",
		func() goja.Value { return r.vm.ToValue(el.Height()) },
		func(v goja.Value) { el.SetAttribute("height", strconv.FormatInt(v.ToInteger(), 10)) })
	r.accessor(obj, "complete", func() goja.Value { return r.vm.ToValue(el.Complete()) }, nil)
	r.accessor(obj, "textContent",
		func() goja.Value { return r.vm.ToValue(el.TextContent()) },
		func(v goja.Value) { el.SetTextContent(v.String()) })
	r.accessor(obj, "innerHTML",
		func() goja.Value { return r.vm.ToValue(innerHTML(el)) },
		func(v goja.Value) { r.setInnerHTML(el, v.String()) })
	r.accessor(obj, "parentElement", func() goja.Value { return r.wrap(el.Parent()) }, nil)
	r.accessor(obj, "children", func() goja.Value { return r.wrapAll(el.Children()) }, nil)

	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := el.Attr(call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return r.vm.ToValue(v)
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		el.SetAttribute(call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		el.RemoveAttribute(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(el.HasAttribute(call.Argument(0).String()))
	})
	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := r.unwrap(call.Argument(0))
		r.throwIf(el.AppendChild(child))
		return call.Argument(0)
	})
	_ = obj.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		child := r.unwrap(call.Argument(0))
		var ref *dom.Element
		if !goja.IsNull(call.Argument(1)) && !goja.IsUndefined(call.Argument(1)) {
			ref = r.unwrap(call.Argument(1))
		}
		r.throwIf(el.InsertBefore(child, ref))
		return call.Argument(0)
	})
	_ = obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		r.throwIf(el.RemoveChild(r.unwrap(call.Argument(0))))
		return call.Argument(0)
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		el.Remove()
		return goja.Undefined()
	})
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return r.wrap(el.QuerySelector(call.Argument(0).String()))
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return r.wrapAll(el.QuerySelectorAll(call.Argument(0).String()))
	})
	_ = obj.Set("matches", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(el.Matches(call.Argument(0).String()))
	})

	classList := r.vm.NewObject()
	_ = classList.Set("add", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			el.AddClass(arg.String())
		}
		return goja.Undefined()
	})
	_ = classList.Set("contains", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(el.HasClass(call.Argument(0).String()))
	})
	_ = obj.Set("classList", classList)

	return obj
}

func (r *Runtime) wrapAll(els []*dom.Element) goja.Value {
	out := make([]interface{}, len(els))
	for i, el := range els {
		out[i] = r.wrap(el)
	}
	return r.vm.NewArray(out...)
}

// unwrap maps a JS element object back to its element, throwing a TypeError otherwise
func (r *Runtime) unwrap(v goja.Value) *dom.Element {
	if obj, ok := v.(*goja.Object); ok {
		if el, ok := r.owners[obj]; ok {
			return el
		}
	}
	panic(r.vm.NewTypeError("argument is not an element"))
}

func (r *Runtime) throwIf(err error) {
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
}

func (r *Runtime) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (r *Runtime) attrAccessor(obj *goja.Object, el *dom.Element, prop, attr string) {
	r.accessor(obj, prop,
		func() goja.Value { return r.vm.ToValue(el.GetAttribute(attr)) },
		func(v goja.Value) { el.SetAttribute(attr, v.String()) })
}

func (r *Runtime) setInnerHTML(el *dom.Element, markup string) {
	for _, c := range el.Children() {
		c.Remove()
	}
	el.SetTextContent("")

	nodes, err := el.Document().ParseFragment(markup)
	r.throwIf(err)
	for _, n := range nodes {
		r.throwIf(el.AppendChild(n))
	}
}

func innerHTML(el *dom.Element) string {
	var b strings.Builder
	b.WriteString(el.TextContent())
	for _, c := range el.Children() {
		b.WriteString(c.OuterHTML())
	}
	return b.String()
}

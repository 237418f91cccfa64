package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/pkg/models"
)

// Regex fallbacks for when the viewer script cannot be executed.
var (
	lienIDRe = regexp.MustCompile(`var iLienID\s*=\s*(\d+)`)
	countyRe = regexp.MustCompile(`var county\s*=\s*"(\d+)"`)
	bookRe   = regexp.MustCompile(`var book\s*=\s*"(\d+)"`)
	pageRe   = regexp.MustCompile(`var page\s*=\s*"(\d+)"`)
	userRe   = regexp.MustCompile(`var user\s*=\s*(\d+)`)
	appIDRe  = regexp.MustCompile(`var appid\s*=\s*(\d+)`)
)

// Viewer extracts the document-viewer reference from a raw detail page.
// It is used when the structured tables carried no values but the page
// image itself may still be readable.
func (p *Parser) Viewer(page *models.RawRecordPage) *models.ViewerRef {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil
	}
	return p.parseViewer(doc)
}

// parseViewer locates the inline document-viewer script and pulls the image
// reference out of its global variables. The script is executed in a
// sandboxed VM first; statements touching the missing DOM fail after the
// var declarations have already run, so the globals survive. Plain regex
// extraction covers scripts the VM rejects outright.
func (p *Parser) parseViewer(doc *goquery.Document) *models.ViewerRef {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, external := s.Attr("src"); external {
			return true
		}
		if strings.Contains(s.Text(), "ViewImage") {
			script = s.Text()
			return false
		}
		return true
	})
	if script == "" {
		return nil
	}

	ref := evalViewerScript(script)
	if ref == nil {
		ref = regexViewerScript(script)
	}
	if ref == nil || ref.LienID == "" {
		return nil
	}

	ref.URL = fmt.Sprintf("%s/Imaging/HTML5Viewer.aspx?id=%s&key1=%s&key2=%s&county=%s&userid=%s&appid=%s",
		p.baseURL, ref.LienID, ref.Book, ref.Page, ref.County, ref.UserID, ref.AppID)
	return ref
}

// evalViewerScript runs the inline script in a goja VM with a minimal
// browser stub and reads the viewer globals back out.
func evalViewerScript(script string) *models.ViewerRef {
	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{})
	vm.Set("console", map[string]interface{}{
		"log":   func(call goja.FunctionCall) goja.Value { return nil },
		"error": func(call goja.FunctionCall) goja.Value { return nil },
	})

	if _, err := vm.RunString(script); err != nil {
		// Most viewer scripts fail once they reach DOM calls; the globals we
		// need are declared before that point.
		log.Debug().Err(err).Msg("Viewer script execution stopped early")
	}

	get := func(name string) string {
		v := vm.Get(name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return ""
		}
		return v.String()
	}

	ref := &models.ViewerRef{
		LienID: get("iLienID"),
		County: get("county"),
		Book:   get("book"),
		Page:   get("page"),
		UserID: get("user"),
		AppID:  get("appid"),
	}
	if ref.LienID == "" {
		return nil
	}
	return ref
}

// regexViewerScript is the fallback extraction for scripts goja rejects.
func regexViewerScript(script string) *models.ViewerRef {
	pick := func(re *regexp.Regexp) string {
		if m := re.FindStringSubmatch(script); m != nil {
			return m[1]
		}
		return ""
	}

	ref := &models.ViewerRef{
		LienID: pick(lienIDRe),
		County: pick(countyRe),
		Book:   pick(bookRe),
		Page:   pick(pageRe),
		UserID: pick(userRe),
		AppID:  pick(appIDRe),
	}
	if ref.LienID == "" {
		return nil
	}
	return ref
}

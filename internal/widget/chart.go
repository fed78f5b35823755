package widget

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/net/html"

	"github.com/evcraddock/blogcomments/internal/comment"
)

const chartRadius = 90.0

var sliceColors = []string{"#3366cc", "#dc3912", "#ff9900", "#109618", "#990099", "#0099c6", "#dd4477"}

// buildChart renders counts as an SVG pie chart with one slice and one
// legend entry per post. Posts without comments get neither.
func buildChart(counts []comment.BlogCount) []*html.Node {
	total := 0
	for _, bc := range counts {
		if bc.Count > 0 {
			total += bc.Count
		}
	}
	if total == 0 {
		return nil
	}

	size := strconv.Itoa(int(2 * chartRadius))
	svg := element("svg",
		"class", "comment-chart-pie",
		"viewBox", "0 0 "+size+" "+size,
		"width", size,
		"height", size,
		"role", "img",
	)
	svg.AppendChild(appendChildren(element("title"), text("Comments per blog post")))
	legend := element("ul", "class", "comment-chart-legend")

	start := -math.Pi / 2
	for i, bc := range counts {
		if bc.Count <= 0 {
			continue
		}
		color := sliceColors[i%len(sliceColors)]
		frac := float64(bc.Count) / float64(total)
		end := start + frac*2*math.Pi

		svg.AppendChild(slice(bc, color, start, end, frac))
		legend.AppendChild(appendChildren(
			element("li", "data-blog", strconv.Itoa(bc.BlogID)),
			element("span", "class", "swatch", "style", "background-color: "+color),
			text(fmt.Sprintf("Blog Post %d: %d", bc.BlogID, bc.Count)),
		))
		start = end
	}

	heading := appendChildren(element("h4"), text("Comments per Blog Post"))
	return []*html.Node{heading, svg, legend}
}

func slice(bc comment.BlogCount, color string, start, end, frac float64) *html.Node {
	title := appendChildren(element("title"), text(fmt.Sprintf("Blog Post %d: %d", bc.BlogID, bc.Count)))
	blog := strconv.Itoa(bc.BlogID)

	// A full circle cannot be drawn as a single arc.
	if frac >= 1 {
		r := formatCoord(chartRadius)
		return appendChildren(element("circle",
			"class", "slice", "data-blog", blog,
			"cx", r, "cy", r, "r", r, "fill", color,
		), title)
	}

	x1, y1 := point(start)
	x2, y2 := point(end)
	large := "0"
	if frac > 0.5 {
		large = "1"
	}
	r := formatCoord(chartRadius)
	d := fmt.Sprintf("M %s %s L %s %s A %s %s 0 %s 1 %s %s Z",
		r, r, x1, y1, r, r, large, x2, y2)
	return appendChildren(element("path",
		"class", "slice", "data-blog", blog,
		"d", d, "fill", color,
	), title)
}

func point(angle float64) (string, string) {
	return formatCoord(chartRadius + chartRadius*math.Cos(angle)),
		formatCoord(chartRadius + chartRadius*math.Sin(angle))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

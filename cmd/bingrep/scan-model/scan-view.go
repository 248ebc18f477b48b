package scan_model

import (
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wrap"
	"golang.org/x/text/message"
	"math"
	"strings"
	"time"
)

const (
	MB = 1_000_000
	KB = 1_000
)

func (m ScanModel) View() string {
	if m.Done || m.AbnormalExit {
		return ""
	}

	indentAmount := 2
	widthWithoutIndent := m.WindowWidth - indentAmount*4

	var output strings.Builder

	output.WriteString(wrap.String("Scanning "+m.SourceName+" for "+m.PatternName, widthWithoutIndent))
	output.WriteString("\n\n")

	m.ProgressBar.Width = widthWithoutIndent
	output.WriteString(m.ProgressBar.ViewAs(m.PercentComplete()))
	output.WriteString("\n\n")

	scanned := m.Position - m.StartOffset
	throughput := CalculateThroughput(m.StartTime, time.Now(), scanned)

	positionString := "[ "
	positionString += m.Printer.Sprintf("%d", m.Position)
	positionString += " / "
	positionString += m.Printer.Sprintf("%d", m.SourceSize)
	positionString += " ]"
	positionString += ThroughputString(m.Printer, throughput)

	output.WriteString(wrap.String(positionString, widthWithoutIndent))
	output.WriteString("\n")
	output.WriteString(wrap.String(m.Printer.Sprintf("Hits: %d", m.Hits), widthWithoutIndent))
	output.WriteString("\n\n")
	output.WriteString(wrap.String("CTRL-C  - abort scan", widthWithoutIndent))

	return indent.String(output.String(), uint(indentAmount))
}

// PercentComplete is the scanned share of the range from StartOffset to the
// end of the source.
func (m ScanModel) PercentComplete() float64 {
	total := m.SourceSize - m.StartOffset
	if total <= 0 {
		return 1
	}

	return math.Min(1, float64(m.Position-m.StartOffset)/float64(total))
}

func CalculateThroughput(startTime time.Time, endTime time.Time, processedBytes int64) int64 {
	if startTime.IsZero() {
		return -1
	}

	durationInMilliseconds := endTime.Sub(startTime).Milliseconds()
	if durationInMilliseconds <= 0 {
		return -1
	}

	throughput := int64(math.Round(float64(processedBytes) / float64(durationInMilliseconds) * 1000))

	return throughput
}

func ThroughputString(printer *message.Printer, throughput int64) string {
	if throughput == -1 {
		return "Unknown"
	} else if throughput > MB {
		return printer.Sprintf("%15d MB/s", throughput/MB)
	} else if throughput > KB {
		return printer.Sprintf("%15d KB/s", throughput/KB)
	}

	return printer.Sprintf("%15d B/s", throughput)
}

package assistant

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metalwatch/internal/answer"
	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
	"metalwatch/internal/storage"
)

var kolkata = time.FixedZone("IST", 5*60*60+30*60)

// 2026-03-05 in Kolkata.
func fixedNow() time.Time { return time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(date, metal, carat, gram string) storage.PriceRecord {
	return storage.PriceRecord{Date: day(date), Metal: metal, Carat: carat, PricePerGram: decimal.RequireFromString(gram)}
}

func marketStore() *storage.MemoryStore {
	return storage.NewMemoryStore(
		rec("2026-02-28", query.Gold, "22K", "7550.00"),
		rec("2026-02-28", query.Gold, "24K", "8230.00"),
		rec("2026-02-28", query.Silver, "", "96.00"),
		rec("2026-03-01", query.Gold, "22K", "7600.00"),
		rec("2026-03-01", query.Gold, "24K", "8290.00"),
		rec("2026-03-01", query.Silver, "", "95.20"),
		rec("2026-03-01", query.Platinum, "", "2900.00"),
	)
}

type stubGenerator struct {
	text   string
	err    error
	hang   bool
	chunks []string
	calls  int
}

func (g *stubGenerator) Generate(ctx context.Context, _ answer.Request) (string, error) {
	g.calls++
	if g.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.text, g.err
}

func (g *stubGenerator) Stream(ctx context.Context, _ answer.Request) (<-chan answer.Chunk, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	ch := make(chan answer.Chunk)
	go func() {
		defer close(ch)
		for _, text := range g.chunks {
			select {
			case ch <- answer.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func newAssistant(store storage.PriceReader, gen answer.Generator) *Assistant {
	logger := zerolog.Nop()
	parser := query.NewParser(kolkata, fixedNow)
	res := resolver.New(store, resolver.Options{WindowDays: 3, LookbackDays: 30}, logger)
	var synth *answer.Synthesizer
	if gen == nil {
		synth = answer.New(nil, answer.Options{}, nil, logger)
	} else {
		synth = answer.New(gen, answer.Options{Timeout: 30 * time.Millisecond}, nil, logger)
	}
	return New(parser, res, synth, nil, nil, Options{TrailingDays: 7}, logger)
}

func ask(t *testing.T, a *Assistant, text string) Reply {
	t.Helper()
	reply, err := a.Ask(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, reply.RequestID)
	return reply
}

func TestAskPriceUsesMostRecentDayInWindow(t *testing.T) {
	store := storage.NewMemoryStore(
		rec("2026-02-20", query.Gold, "22K", "7432.10"),
		rec("2026-02-25", query.Gold, "22K", "7510.00"),
	)
	gen := &stubGenerator{text: "should not be used"}
	reply := ask(t, newAssistant(store, gen), "gold price on 22 february")

	assert.Equal(t, query.IntentPrice, reply.Intent)
	assert.Equal(t, answer.SourceSuggested, reply.Source)
	assert.Contains(t, reply.Answer, "₹7,510.00")
	assert.NotContains(t, reply.Answer, "7,432.10")
	assert.Equal(t, "2026-02-25", reply.AsOf)
	assert.Zero(t, gen.calls)
}

func TestAskCompareLatestWithPreviousDay(t *testing.T) {
	reply := ask(t, newAssistant(marketStore(), nil), "compare gold and silver")

	assert.Equal(t, query.IntentCompare, reply.Intent)
	assert.Contains(t, reply.Answer, "Gold 22K is UP ₹50.00 (+0.66%)")
	assert.Contains(t, reply.Answer, "Silver is DOWN ₹0.80 (-0.83%)")
	assert.Contains(t, reply.Answer, "1 Mar 2026")
}

func TestAskCompareSingleDateWithLatest(t *testing.T) {
	reply := ask(t, newAssistant(marketStore(), nil), "compare gold on 28 feb")
	assert.Equal(t, "Compared with 28 Feb 2026, on 1 Mar 2026 Gold 22K is UP ₹50.00 (+0.66%) at ₹7,600.00/g.", reply.Answer)

	// yesterday falls back to 1 Mar, the newest day, so it is compared with 28 Feb
	reply = ask(t, newAssistant(marketStore(), nil), "compare silver price yesterday")
	assert.Equal(t, "Compared with 28 Feb 2026, on 1 Mar 2026 Silver is DOWN ₹0.80 (-0.83%) at ₹95.20/g.", reply.Answer)
}

func TestAskCompareWithSingleDayOfData(t *testing.T) {
	store := storage.NewMemoryStore(rec("2026-03-01", query.Silver, "", "95.20"))
	reply := ask(t, newAssistant(store, nil), "compare silver")
	assert.Equal(t, "On 1 Mar 2026, Silver is ₹95.20/g. There is no earlier date to compare it with.", reply.Answer)
}

func TestAskRankCheapestFirst(t *testing.T) {
	reply := ask(t, newAssistant(marketStore(), nil), "which metal is cheapest?")

	assert.Equal(t, query.IntentRank, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Answer, "On 1 Mar 2026, from cheapest to most expensive per gram: 1. Silver ₹95.20/g"), reply.Answer)
	assert.Contains(t, reply.Answer, "The cheapest is Silver and the most expensive is Gold.")
}

func TestAskEmptyStoreApologises(t *testing.T) {
	reply := ask(t, newAssistant(storage.NewMemoryStore(), nil), "hello there")

	assert.Equal(t, query.IntentPrice, reply.Intent)
	assert.Contains(t, reply.Answer, "Sorry")
	assert.Equal(t, answer.SourceSuggested, reply.Source)
}

func TestAskOutsideCoverageCitesBounds(t *testing.T) {
	reply := ask(t, newAssistant(marketStore(), nil), "gold price on 1 jan 2025")
	assert.Equal(t, "Sorry, I couldn't find prices for 1 Jan 2025. Data is available from 28 Feb 2026 to 1 Mar 2026.", reply.Answer)
}

func TestAskElaborationFallsBackOnTimeout(t *testing.T) {
	gen := &stubGenerator{hang: true}
	a := newAssistant(marketStore(), gen)

	reply, err := a.Ask(context.Background(), "explain the gold trend")
	require.NoError(t, err)
	assert.Equal(t, query.IntentTrend, reply.Intent)
	assert.Equal(t, answer.SourceFallback, reply.Source)
	assert.Equal(t, "From 28 Feb 2026 to 1 Mar 2026, Gold 22K moved from ₹7,550.00/g to ₹7,600.00/g, UP ₹50.00 (+0.66%). The low was ₹7,550.00/g on 28 Feb 2026 and the high was ₹7,600.00/g on 1 Mar 2026.", reply.Answer)
	assert.Equal(t, 1, gen.calls)
}

func TestAskElaborationUsesGeneratedText(t *testing.T) {
	gen := &stubGenerator{text: "Gold rose ₹50.00 between 28 Feb 2026 and 1 Mar 2026."}
	reply := ask(t, newAssistant(marketStore(), gen), "why did gold go up?")
	assert.Equal(t, answer.SourceGenerated, reply.Source)
	assert.Equal(t, gen.text, reply.Answer)
}

func TestAskAverageOverExplicitWindow(t *testing.T) {
	reply := ask(t, newAssistant(marketStore(), nil), "average silver price last 10 days")
	assert.Equal(t, query.IntentAverage, reply.Intent)
	assert.Equal(t, "The average Silver price from 28 Feb 2026 to 1 Mar 2026 was ₹95.60/g across 2 data points.", reply.Answer)
}

func TestAskInformationalIntents(t *testing.T) {
	a := newAssistant(marketStore(), nil)

	reply := ask(t, a, "what is 22k purity")
	assert.Equal(t, query.IntentCarats, reply.Intent)
	assert.Contains(t, reply.Answer, "22K is 91.6% pure")
	assert.Contains(t, reply.Answer, "On 1 Mar 2026, Gold 24K is ₹8,290.00/g, 22K ₹7,600.00/g.")

	reply = ask(t, a, "what dates are available")
	assert.Equal(t, "Price data is available from 28 Feb 2026 to 1 Mar 2026.", reply.Answer)

	reply = ask(t, a, "help")
	assert.Equal(t, query.IntentHelp, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Answer, "I can answer questions"))
}

var numericToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

func TestAnswersOnlyQuoteComputedNumbers(t *testing.T) {
	a := newAssistant(marketStore(), &stubGenerator{text: "made up 1234.56"})
	questions := []string{
		"gold price today",
		"silver price on 28 feb",
		"price of platinum",
		"compare gold and silver",
		"gold vs silver yesterday",
		"gold price from 28 feb to 1 mar",
	}
	for _, text := range questions {
		c, err := a.Build(context.Background(), a.Analyze(context.Background(), text))
		require.NoError(t, err, text)
		require.True(t, c.HasSuggestion(), text)

		reply := ask(t, a, text)
		allowed := make(map[string]struct{})
		for _, tok := range numericToken.FindAllString(c.Suggested, -1) {
			allowed[tok] = struct{}{}
		}
		for _, tok := range numericToken.FindAllString(reply.Answer, -1) {
			_, ok := allowed[tok]
			assert.True(t, ok, "%q: token %s not in computed answer %q", text, tok, c.Suggested)
		}
	}
}

func TestAskStoreUnavailable(t *testing.T) {
	store := marketStore()
	store.FailWith(errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	reply, err := newAssistant(store, nil).Ask(context.Background(), "gold price today")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotContains(t, err.Error(), "10.0.0.5")
	assert.Empty(t, reply.Answer)
	assert.NotEmpty(t, reply.RequestID)
}

func collect(t *testing.T, ch <-chan answer.Delta) string {
	t.Helper()
	var b strings.Builder
	timeout := time.After(2 * time.Second)
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return b.String()
			}
			b.WriteString(d.Text)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestAskStream(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"Gold is ", "₹7,600.00/g ", "on 1 Mar 2026."}}
	a := newAssistant(marketStore(), gen)

	stream, err := a.AskStream(context.Background(), "tell me more about gold")
	require.NoError(t, err)
	assert.Equal(t, query.IntentPrice, stream.Intent)
	assert.Equal(t, "2026-03-01", stream.AsOf)
	assert.Contains(t, stream.Evidence, "Gold 22K: ₹7,600.00/g")
	assert.Equal(t, "Gold is ₹7,600.00/g on 1 Mar 2026.", collect(t, stream.Deltas))

	stream, err = a.AskStream(context.Background(), "gold price")
	require.NoError(t, err)
	assert.Equal(t, "On 1 Mar 2026, Gold 24K is ₹8,290.00/g, 22K ₹7,600.00/g.", collect(t, stream.Deltas))
}

func TestAskStreamStoreUnavailable(t *testing.T) {
	store := marketStore()
	store.FailWith(errors.New("boom"))
	_, err := newAssistant(store, nil).AskStream(context.Background(), "gold price")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "₹1,2…", excerpt("₹1,234", 4))
	assert.Equal(t, "short", excerpt("short", 10))
}

package codec

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mbn/pkg/exception"
	"mbn/pkg/metadata"
	"mbn/pkg/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBars() []record.RecordEnum {
	return []record.RecordEnum{
		record.OhlcvMsg{
			Hd:     record.NewHeader[record.OhlcvMsg](1, 1724287878000000000),
			Open:   100000000000,
			High:   200000000000,
			Low:    50000000000,
			Close:  150000000000,
			Volume: 1000000000000,
		},
		record.OhlcvMsg{
			Hd:     record.NewHeader[record.OhlcvMsg](2, 1724289878000000000),
			Open:   100000000000,
			High:   200000000000,
			Low:    50000000000,
			Close:  150000000000,
			Volume: 1000000000000,
		},
	}
}

func mixedRecords() []record.RecordEnum {
	level := [1]record.BidAskPair{{BidPx: 1, AskPx: 2, BidSz: 2, AskSz: 2, BidCt: 1, AskCt: 3}}
	mbp := record.Mbp1Msg{
		Hd:        record.NewHeader[record.Mbp1Msg](1, 1622471124),
		Px:        1000,
		Sz:        10,
		Action:    record.ActionModify,
		Side:      record.SideBid,
		Flags:     record.FlagTob,
		TsRecv:    123456789098765,
		TsInDelta: 12345,
		Sequence:  123456,
		Levels:    level,
	}
	tbbo := record.TbboMsg(mbp)
	tbbo.Hd = record.NewHeader[record.TbboMsg](1, 1622471125)
	return append([]record.RecordEnum{
		mbp,
		tbbo,
		record.TradeMsg{
			Hd:       record.NewHeader[record.TradeMsg](2, 1622471126),
			Px:       999,
			Sz:       3,
			Action:   record.ActionTrade,
			Side:     record.SideAsk,
			TsRecv:   1622471127,
			Sequence: 7,
		},
		record.BboMsg{
			Hd:       record.NewHeader[record.BboMsg](2, 1622471128),
			Px:       998,
			Sz:       4,
			Side:     record.SideNone,
			TsRecv:   1622471129,
			Sequence: 8,
			Levels:   level,
		},
	}, sampleBars()...)
}

func sampleMetadata() *metadata.Metadata {
	symbols := metadata.NewSymbolMap()
	symbols.Add("AAPL", 1)
	symbols.Add("TSLA", 2)
	meta := metadata.New(record.SchemaOhlcv1S, 1234567898765, 123456765432, symbols)
	return &meta
}

func encodeFrames(t testing.TB, recs []record.RecordEnum) []byte {
	t.Helper()
	data, err := EncodeToBytes(nil, recs)
	require.NoError(t, err)
	return data
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		desc string
		meta *metadata.Metadata
	}{
		{"records only", nil},
		{"with metadata", sampleMetadata()},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			data, err := EncodeToBytes(tc.meta, mixedRecords())
			require.NoError(t, err)

			dec, err := NewDecoderFromBytes(data)
			require.NoError(t, err)
			if tc.meta == nil {
				assert.Nil(t, dec.Metadata())
			} else {
				require.NotNil(t, dec.Metadata())
				assert.True(t, tc.meta.Equal(*dec.Metadata()))
			}

			got, err := dec.DecodeAll()
			require.NoError(t, err)
			assert.Equal(t, mixedRecords(), got)
			for _, rec := range got {
				assert.Equal(t, rec.Size(), rec.Header().RecordSize())
			}
		})
	}
}

func TestEmptySource(t *testing.T) {
	got, err := NewRecordDecoder(bytes.NewReader(nil)).DecodeToOwned()
	require.NoError(t, err)
	assert.Empty(t, got)

	dec, err := NewDecoderFromBytes(nil)
	require.NoError(t, err)
	assert.Nil(t, dec.Metadata())
	_, err = dec.DecodeRef()
	assert.Equal(t, io.EOF, err)
}

func TestMalformedFrame(t *testing.T) {
	_, err := NewRecordDecoder(bytes.NewReader([]byte{3, 0, 0, 0})).DecodeRef()
	require.ErrorIs(t, err, exception.ErrMalformedFrame)
	assert.Contains(t, err.Error(), "12")

	var typed *exception.MalformedFrameError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 12, typed.Length)
}

func TestTruncatedFrame(t *testing.T) {
	data := encodeFrames(t, sampleBars())
	cut := data[:len(data)-3]

	t.Run("strict", func(t *testing.T) {
		_, err := NewRecordDecoder(bytes.NewReader(cut)).DecodeToOwned()
		require.ErrorIs(t, err, exception.ErrTruncatedFrame)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("lenient", func(t *testing.T) {
		got, err := NewRecordDecoder(bytes.NewReader(cut), WithLenientTruncation()).DecodeToOwned()
		require.NoError(t, err)
		assert.Equal(t, sampleBars()[:1], got)
	})

	t.Run("frame boundary", func(t *testing.T) {
		got, err := NewRecordDecoder(bytes.NewReader(data[:record.OhlcvSize])).DecodeToOwned()
		require.NoError(t, err)
		assert.Equal(t, sampleBars()[:1], got)
	})
}

func TestIteratorMatchesDecodeToOwned(t *testing.T) {
	data := encodeFrames(t, mixedRecords())

	owned, err := NewRecordDecoder(bytes.NewReader(data)).DecodeToOwned()
	require.NoError(t, err)

	var iterated []record.RecordEnum
	for rec, err := range NewRecordDecoder(bytes.NewReader(data)).DecodeIterator() {
		require.NoError(t, err)
		iterated = append(iterated, rec)
	}
	assert.Equal(t, owned, iterated)
}

func TestIteratorSinglePass(t *testing.T) {
	dec := NewRecordDecoder(bytes.NewReader(encodeFrames(t, sampleBars())))

	count := 0
	for _, err := range dec.DecodeIterator() {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)

	for range dec.DecodeIterator() {
		t.Fatal("exhausted iterator must not yield again")
	}
}

func TestIteratorResumesAfterBreak(t *testing.T) {
	dec := NewRecordDecoder(bytes.NewReader(encodeFrames(t, mixedRecords())))
	for range dec.DecodeIterator() {
		break
	}

	rest := 0
	for _, err := range dec.DecodeIterator() {
		require.NoError(t, err)
		rest++
	}
	assert.Equal(t, len(mixedRecords())-1, rest)
}

func TestIteratorYieldsErrorOnce(t *testing.T) {
	data := encodeFrames(t, sampleBars())
	data[1] = 0x7f

	var errs []error
	for rec, err := range NewRecordDecoder(bytes.NewReader(data)).DecodeIterator() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.Fatalf("unexpected record %v", rec)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], exception.ErrUnsupportedRecordType)
}

func TestOhlcvScenario(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRecordEncoder(&buf).EncodeRecords(sampleBars()))

	got, err := NewRecordDecoder(&buf).DecodeToOwned()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sampleBars(), got)
}

func TestCombinedScenario(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(sampleMetadata(), sampleBars()))
	assert.Equal(t, metadata.MetadataLength+2*record.OhlcvSize, buf.Len())

	dec, err := NewDecoder(&buf)
	require.NoError(t, err)
	require.NotNil(t, dec.Metadata())
	assert.True(t, sampleMetadata().Equal(*dec.Metadata()))

	got, err := dec.DecodeAll()
	require.NoError(t, err)
	assert.Equal(t, sampleBars(), got)
}

func TestUnsupportedRecordType(t *testing.T) {
	data := encodeFrames(t, sampleBars()[:1])
	data[1] = 0x7f

	_, err := NewRecordDecoder(bytes.NewReader(data)).DecodeToOwned()
	require.ErrorIs(t, err, exception.ErrUnsupportedRecordType)
	assert.Contains(t, err.Error(), "0x7f")

	ref, err := NewRecordDecoder(bytes.NewReader(data)).DecodeRef()
	require.NoError(t, err)
	assert.Equal(t, record.RType(0x7f), ref.RType())
	assert.Equal(t, record.OhlcvSize, ref.Len())
}

func TestDecodeAbortsOnFirstFailure(t *testing.T) {
	data := encodeFrames(t, mixedRecords())
	data[record.Mbp1Size+1] = 0x7f

	got, err := NewRecordDecoder(bytes.NewReader(data)).DecodeToOwned()
	require.ErrorIs(t, err, exception.ErrUnsupportedRecordType)
	assert.Nil(t, got)
}

func TestDecodeRefReusesBuffer(t *testing.T) {
	dec := NewRecordDecoder(bytes.NewReader(encodeFrames(t, sampleBars())))

	first, err := dec.DecodeRef()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first.Header().InstrumentID)

	second, err := dec.DecodeRef()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), second.Header().InstrumentID)
	assert.Equal(t, uint32(2), first.Header().InstrumentID, "refs alias the decoder scratch buffer")
}

func TestMetadataAbsentConsumesNothing(t *testing.T) {
	data := encodeFrames(t, mixedRecords())
	require.Greater(t, len(data), metadata.MetadataLength)

	mdec := NewMetadataDecoder(bytes.NewReader(data))
	meta, err := mdec.Decode()
	require.NoError(t, err)
	assert.Nil(t, meta)

	got, err := NewRecordDecoder(mdec.Reader()).DecodeToOwned()
	require.NoError(t, err)
	assert.Equal(t, mixedRecords(), got)
}

func TestMetadataTooLargeWritesNothing(t *testing.T) {
	symbols := metadata.NewSymbolMap()
	for i := uint32(0); i < 12; i++ {
		symbols.Add("LONG-TICKER-NAME", i)
	}
	meta := metadata.New(record.SchemaMbp1, 0, 0, symbols)

	var buf bytes.Buffer
	err := NewEncoder(&buf).Encode(&meta, sampleBars())
	require.ErrorIs(t, err, exception.ErrMetadataTooLarge)
	assert.Zero(t, buf.Len())
}

func TestEncodeRecordsFlushes(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, NewRecordEncoder(w).EncodeRecords(sampleBars()))
	assert.Equal(t, 2*record.OhlcvSize, buf.Len())
}

func TestEncodeRef(t *testing.T) {
	data := encodeFrames(t, mixedRecords())
	dec := NewRecordDecoder(bytes.NewReader(data))

	var buf bytes.Buffer
	enc := NewRecordEncoder(&buf)
	for {
		ref, err := dec.DecodeRef()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, enc.EncodeRef(ref))
	}
	assert.Equal(t, data, buf.Bytes())
}

func TestMaxFrameSize(t *testing.T) {
	data := encodeFrames(t, mixedRecords())
	_, err := NewRecordDecoder(bytes.NewReader(data), WithMaxFrameSize(record.TradeSize)).DecodeRef()
	assert.ErrorIs(t, err, exception.ErrFrameTooLarge)
}

type countingObserver struct {
	frames int
	bytes  int
	errs   int
}

func (o *countingObserver) ObserveFrame(_ record.RType, size int, _ time.Duration) {
	o.frames++
	o.bytes += size
}

func (o *countingObserver) ObserveError(error) {
	o.errs++
}

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	data := encodeFrames(t, mixedRecords())
	_, err := NewRecordDecoder(bytes.NewReader(data), WithObserver(obs)).DecodeToOwned()
	require.NoError(t, err)
	assert.Equal(t, len(mixedRecords()), obs.frames)
	assert.Equal(t, len(data), obs.bytes)
	assert.Zero(t, obs.errs)

	_, err = NewRecordDecoder(bytes.NewReader([]byte{1}), WithObserver(obs)).DecodeRef()
	require.Error(t, err)
	assert.Equal(t, 1, obs.errs)
}

func TestObserverCountsUnsupportedFrameAsError(t *testing.T) {
	obs := &countingObserver{}
	data := encodeFrames(t, sampleBars())
	data[1] = 0x7f

	dec := NewRecordDecoder(bytes.NewReader(data), WithObserver(obs))
	ref, err := dec.DecodeRef()
	require.NoError(t, err)
	assert.Equal(t, record.RType(0x7f), ref.RType())
	assert.Zero(t, obs.frames)
	assert.Equal(t, 1, obs.errs)

	_, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, 1, obs.frames)
	assert.Equal(t, 1, obs.errs)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.mbn")

	head, err := EncodeToBytes(sampleMetadata(), sampleBars()[:1])
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, head, false))

	tail, err := EncodeToBytes(nil, sampleBars()[1:])
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, tail, true))

	dec, err := NewDecoderFromFile(path)
	require.NoError(t, err)
	defer dec.Close()

	require.NotNil(t, dec.Metadata())
	got, err := dec.DecodeAll()
	require.NoError(t, err)
	assert.Equal(t, sampleBars(), got)

	require.NoError(t, WriteFile(path, tail, false))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(tail)), info.Size())
}

func TestAsyncDecoder(t *testing.T) {
	ctx := context.Background()
	data, err := EncodeToBytes(sampleMetadata(), mixedRecords())
	require.NoError(t, err)

	dec, err := NewAsyncDecoder(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.NotNil(t, dec.Metadata())

	var got []record.RecordEnum
	for rec, err := range dec.Stream(ctx) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, mixedRecords(), got)
}

func TestAsyncDecoderCancel(t *testing.T) {
	data := encodeFrames(t, mixedRecords())
	dec, err := NewAsyncDecoder(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec, err := dec.Decode(ctx)
	require.NoError(t, err)
	assert.Equal(t, mixedRecords()[0], rec)

	cancel()
	_, err = dec.Decode(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewAsyncDecoder(ctx, bytes.NewReader(data))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsyncDecoderReadsThroughPipe(t *testing.T) {
	data, err := EncodeToBytes(sampleMetadata(), sampleBars())
	require.NoError(t, err)

	pr, pw := io.Pipe()
	go func() {
		for i := 0; i < len(data); i += 7 {
			end := min(i+7, len(data))
			if _, err := pw.Write(data[i:end]); err != nil {
				return
			}
		}
		_ = pw.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dec, err := NewAsyncDecoder(ctx, pr)
	require.NoError(t, err)
	require.NotNil(t, dec.Metadata())

	got, err := dec.DecodeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBars(), got)
}

func TestAsyncDecoderDropsExpiredDeadline(t *testing.T) {
	head, err := EncodeToBytes(sampleMetadata(), nil)
	require.NoError(t, err)
	frames := encodeFrames(t, sampleBars())

	client, server := net.Pipe()
	defer client.Close()

	timed, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go func() {
		defer server.Close()
		if _, err := server.Write(head); err != nil {
			return
		}
		<-timed.Done()
		time.Sleep(20 * time.Millisecond)
		_, _ = server.Write(frames)
	}()

	dec, err := NewAsyncDecoder(timed, client)
	require.NoError(t, err)
	require.NotNil(t, dec.Metadata())

	got, err := dec.DecodeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleBars(), got)
}

func FuzzRecordDecoder(f *testing.F) {
	f.Add(encodeFrames(f, mixedRecords()))
	f.Add([]byte{3, 1, 0, 0})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		dec := NewRecordDecoder(bytes.NewReader(data))
		for i := 0; i <= len(data); i++ {
			ref, err := dec.DecodeRef()
			if err != nil {
				return
			}
			if ref.Len() < record.HeaderSize || ref.Len() != ref.Header().RecordSize() {
				t.Fatalf("bad frame length %d", ref.Len())
			}
			_, _ = record.FromRef(ref)
		}
	})
}

func BenchmarkDecodeRef(b *testing.B) {
	recs := mixedRecords()
	for len(recs) < 1024 {
		recs = append(recs, recs...)
	}
	data := encodeFrames(b, recs)
	r := bytes.NewReader(data)

	b.SetBytes(int64(len(data)))
	for b.Loop() {
		r.Reset(data)
		dec := NewRecordDecoder(r)
		for {
			if _, err := dec.DecodeRef(); err != nil {
				break
			}
		}
	}
}

func BenchmarkEncodeRecords(b *testing.B) {
	recs := mixedRecords()
	var buf bytes.Buffer
	enc := NewRecordEncoder(&buf)
	for b.Loop() {
		buf.Reset()
		_ = enc.EncodeRecords(recs)
	}
}

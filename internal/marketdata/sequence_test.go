package marketdata

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		last     int64
		incoming int64
		want     Classification
	}{
		{"first_tick", SequenceNone, 1, ClassFirst},
		{"first_tick_large", SequenceNone, 500, ClassFirst},
		{"in_order", 5, 6, ClassInOrder},
		{"duplicate", 5, 5, ClassDuplicate},
		{"gap_forward", 5, 10, ClassGap},
		{"gap_backward", 5, 3, ClassGap},
		{"gap_skip_one", 5, 7, ClassGap},
		{"no_sequence", 5, NoSequence, ClassNoSequence},
		{"no_sequence_fresh", SequenceNone, NoSequence, ClassNoSequence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.last, tc.incoming); got != tc.want {
				t.Fatalf("Classify(%d, %d) = %s, want %s", tc.last, tc.incoming, got, tc.want)
			}
		})
	}
}

// Classification is total and in-order holds exactly when incoming == last+1.
func TestClassifyTotality(t *testing.T) {
	for last := int64(-1); last <= 10; last++ {
		for incoming := int64(-1); incoming <= 12; incoming++ {
			got := Classify(last, incoming)
			switch got {
			case ClassFirst, ClassInOrder, ClassDuplicate, ClassGap, ClassNoSequence:
			default:
				t.Fatalf("Classify(%d, %d) returned unknown class %q", last, incoming, got)
			}
			if incoming != NoSequence && last != SequenceNone {
				if (got == ClassInOrder) != (incoming == last+1) {
					t.Fatalf("Classify(%d, %d) = %s; in-order must hold iff incoming == last+1", last, incoming, got)
				}
			}
		}
	}
}

package main

import (
	"testing"
)

func sequentialBoard() []int {
	values := make([]int, 25)
	for i := range values {
		values[i] = i + 1
	}
	return values
}

func TestValidBingoBoard(t *testing.T) {
	if !validBingoBoard(sequentialBoard()) {
		t.Fatalf("expected 1..25 to be a valid board")
	}

	short := sequentialBoard()[:24]
	if validBingoBoard(short) {
		t.Fatalf("expected 24-cell board to be invalid")
	}

	duplicated := sequentialBoard()
	duplicated[24] = 1
	if validBingoBoard(duplicated) {
		t.Fatalf("expected board with duplicate value to be invalid")
	}

	outOfRange := sequentialBoard()
	outOfRange[0] = 26
	if validBingoBoard(outOfRange) {
		t.Fatalf("expected board with value 26 to be invalid")
	}

	zero := sequentialBoard()
	zero[0] = 0
	if validBingoBoard(zero) {
		t.Fatalf("expected board with value 0 to be invalid")
	}
}

func TestCountBingoLines_SingleRow(t *testing.T) {
	board := toBingoGrid(sequentialBoard())
	marked := markGrid(board, []int{1, 2, 3, 4, 5})

	lines := countBingoLines(marked)
	if lines != 1 {
		t.Fatalf("expected 1 completed line after calling row 0, got %d", lines)
	}
	if lines >= bingoWinLines {
		t.Fatalf("one row must not reach the %d-line win threshold", bingoWinLines)
	}
}

func TestCountBingoLines_Diagonals(t *testing.T) {
	board := toBingoGrid(sequentialBoard())

	// Main diagonal cells of the row-major 1..25 board.
	marked := markGrid(board, []int{1, 7, 13, 19, 25})
	if lines := countBingoLines(marked); lines != 1 {
		t.Fatalf("expected main diagonal to count as 1 line, got %d", lines)
	}

	// Anti-diagonal.
	marked = markGrid(board, []int{5, 9, 13, 17, 21})
	if lines := countBingoLines(marked); lines != 1 {
		t.Fatalf("expected anti-diagonal to count as 1 line, got %d", lines)
	}
}

func TestCountBingoLines_MonotonicToTwelve(t *testing.T) {
	board := toBingoGrid(sequentialBoard())

	called := []int{}
	previous := 0
	for n := 1; n <= 25; n++ {
		called = append(called, n)
		lines := countBingoLines(markGrid(board, called))
		if lines < previous {
			t.Fatalf("line count decreased from %d to %d after calling %d", previous, lines, n)
		}
		previous = lines
	}

	if previous != 12 {
		t.Fatalf("expected 12 lines with all numbers called (5 rows + 5 cols + 2 diagonals), got %d", previous)
	}
}

func TestCountBingoLines_MalformedGrid(t *testing.T) {
	if lines := countBingoLines([][]bool{{true, true}}); lines != 0 {
		t.Fatalf("expected malformed grid to count 0 lines, got %d", lines)
	}
	if lines := countBingoLines(nil); lines != 0 {
		t.Fatalf("expected nil grid to count 0 lines, got %d", lines)
	}
}

func TestMarkGrid(t *testing.T) {
	board := toBingoGrid(sequentialBoard())
	marked := markGrid(board, []int{1, 13, 25})

	if !marked[0][0] || !marked[2][2] || !marked[4][4] {
		t.Fatalf("expected called cells to be marked")
	}
	if marked[0][1] {
		t.Fatalf("expected uncalled cell to be unmarked")
	}
}

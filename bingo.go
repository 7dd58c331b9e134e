/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Bingo rule engine. Pure functions shared between the relay's payload
// validation and the tests; clients replicate the same logic to score their
// own boards.

const (
	bingoSize = 5

	// A match is won at five completed lines rather than the traditional
	// one, to lengthen games between just two players.
	bingoWinLines = 5
)

// validBingoBoard reports whether values is a legal 25-cell setup: all 25
// values present, pairwise distinct, each in [1,25].
func validBingoBoard(values []int) bool {
	if len(values) != bingoSize*bingoSize {
		return false
	}

	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if v < 1 || v > bingoSize*bingoSize || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// toBingoGrid reshapes a 25-value row-major setup into a 5x5 grid.
func toBingoGrid(values []int) [][]int {
	grid := make([][]int, bingoSize)
	for r := range grid {
		grid[r] = values[r*bingoSize : r*bingoSize+bingoSize]
	}
	return grid
}

// markGrid marks each cell whose value has been called.
func markGrid(board [][]int, called []int) [][]bool {
	calledSet := make(map[int]bool, len(called))
	for _, n := range called {
		calledSet[n] = true
	}

	marked := make([][]bool, len(board))
	for r, row := range board {
		marked[r] = make([]bool, len(row))
		for c, cell := range row {
			marked[r][c] = calledSet[cell]
		}
	}
	return marked
}

// countBingoLines counts completed lines among the five rows, five columns,
// and two diagonals of a marked grid. Grids that are not 5x5 count zero.
func countBingoLines(marked [][]bool) int {
	if len(marked) != bingoSize {
		return 0
	}
	for _, row := range marked {
		if len(row) != bingoSize {
			return 0
		}
	}

	lines := 0
	for i := range bingoSize {
		row, col := true, true
		for j := range bingoSize {
			row = row && marked[i][j]
			col = col && marked[j][i]
		}
		if row {
			lines++
		}
		if col {
			lines++
		}
	}

	diag, anti := true, true
	for i := range bingoSize {
		diag = diag && marked[i][i]
		anti = anti && marked[i][bingoSize-1-i]
	}
	if diag {
		lines++
	}
	if anti {
		lines++
	}

	return lines
}

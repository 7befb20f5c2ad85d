package domain

// Board is a rows x columns grid. board[0] is the top row and
// board[len(board)-1] the bottom one.
type Board [][]Piece

// NewBoard returns an empty grid whose rows share no backing array.
func NewBoard(rows, cols int) (Board, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrInvalidShape
	}
	board := make(Board, rows)
	for i := range board {
		board[i] = make([]Piece, cols)
	}
	return board, nil
}

func (b Board) Rows() int {
	return len(b)
}

func (b Board) Columns() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

func (b Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows() && col >= 0 && col < b.Columns()
}

// Clone creates a deep copy of the board
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	newBoard := make(Board, len(b))
	for i := range b {
		newBoard[i] = make([]Piece, len(b[i]))
		copy(newBoard[i], b[i])
	}
	return newBoard
}

// DropTarget returns the cell a piece released into column would land in.
func DropTarget(board Board, column int) (Move, error) {
	if column < 0 || column >= board.Columns() {
		return Move{}, ErrOutOfBounds
	}

	// scanning from the bottom row up to the top one
	for row := board.Rows() - 1; row >= 0; row-- {
		if board[row][column] == Empty {
			return Move{Row: row, Col: column}, nil
		}
	}

	return Move{}, ErrColumnFull
}

// Place returns a copy of board with piece at move. The input is not touched.
func Place(board Board, move Move, piece Piece) (Board, error) {
	if !board.InBounds(move.Row, move.Col) {
		return nil, ErrOutOfBounds
	}
	newBoard := board.Clone()
	newBoard[move.Row][move.Col] = piece
	return newBoard, nil
}

// Transpose is a column-major view for renderers that draw columns.
// Game logic never uses it.
func Transpose(board Board) Board {
	cols := board.Columns()
	view := make(Board, cols)
	for c := 0; c < cols; c++ {
		view[c] = make([]Piece, board.Rows())
		for r := range board {
			view[c][r] = board[r][c]
		}
	}
	return view
}

func IsColumnFull(board Board, column int) bool {
	if column < 0 || column >= board.Columns() {
		return true
	}
	return board[0][column] != Empty
}

func IsFull(board Board) bool {
	for c := 0; c < board.Columns(); c++ {
		if board[0][c] == Empty {
			return false
		}
	}
	return true
}

func IsEmpty(board Board) bool {
	return CountPieces(board) == 0
}

func CountPieces(board Board) int {
	count := 0
	for _, row := range board {
		for _, cell := range row {
			if cell != Empty {
				count++
			}
		}
	}
	return count
}

func Equal(a, b Board) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if len(a[r]) != len(b[r]) {
			return false
		}
		for c := range a[r] {
			if a[r][c] != b[r][c] {
				return false
			}
		}
	}
	return true
}

// Contains reports whether (row, col) is part of seq. Renderers use it to
// highlight the winning run.
func Contains(seq []Move, row, col int) bool {
	for _, m := range seq {
		if m.Row == row && m.Col == col {
			return true
		}
	}
	return false
}

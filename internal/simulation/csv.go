package simulation

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/okian/duelrank/internal/domain/model"
)

// WriteCSV writes the leaderboard as name,rating,deviation rows with a header.
func WriteCSV(w io.Writer, board []model.Player) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "rating", "deviation"}); err != nil {
		return err
	}
	for _, p := range board {
		row := []string{
			p.Name,
			strconv.FormatFloat(p.Rating, 'f', 2, 64),
			strconv.FormatFloat(p.Deviation, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

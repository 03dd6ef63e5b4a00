package main

import (
	"chatbot-console/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// copyStoredValues upserts every stored value of src into dst by key. The
// destination assigns fresh ids; on a key collision the entry with the later
// timestamp is kept.
func copyStoredValues(src, dst *gorm.DB) (int, error) {
	var copied int
	var rows []models.StoredValue
	err := src.FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
		out := make([]models.StoredValue, len(rows))
		for i, row := range rows {
			row.ID = 0
			out[i] = row
		}
		return dst.Transaction(func(tx *gorm.DB) error {
			result := tx.Omit("id").Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "store_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"data", "timestamp", "updated_at"}),
				Where: clause.Where{Exprs: []clause.Expression{
					clause.Expr{SQL: "stored_values.timestamp < excluded.timestamp"},
				}},
			}).Create(&out)
			copied += int(result.RowsAffected)
			return result.Error
		})
	}).Error
	return copied, err
}

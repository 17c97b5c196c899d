// Package plancatalog загружает каталог тарифных планов из JSON-файла.
// Каталог читается заново при каждом обращении, чтобы операционные
// изменения (цены, группы, выключение плана) вступали в силу сразу,
// без перезапуска процесса.
package plancatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

// ErrPlanNotFound возвращается, если план с указанным ID отсутствует в каталоге.
var ErrPlanNotFound = errors.New("plan not found")

// Catalog предоставляет доступ к тарифным планам.
type Catalog struct {
	path string
}

// New создает каталог, привязанный к файлу планов.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

type catalogFile struct {
	Plans []models.Plan `json:"vip_plans"`
}

// List возвращает все планы, перечитывая файл каталога.
func (c *Catalog) List() ([]models.Plan, error) {
	const op = "plancatalog.List"

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return file.Plans, nil
}

// Plan возвращает план по ID или ErrPlanNotFound.
func (c *Catalog) Plan(id int) (models.Plan, error) {
	const op = "plancatalog.Plan"

	plans, err := c.List()
	if err != nil {
		return models.Plan{}, err
	}
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Plan{}, fmt.Errorf("%s: id %d: %w", op, id, ErrPlanNotFound)
}

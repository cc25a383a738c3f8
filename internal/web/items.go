package web

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/puddle/internal/apperr"
	"github.com/zulandar/puddle/internal/item"
	"github.com/zulandar/puddle/internal/models"
)

const (
	homeItemLimit    = 6
	relatedItemLimit = 3
)

// itemForm holds the raw values of the sell and edit forms.
type itemForm struct {
	Name        string
	Description string
	Price       string
	Category    string
	ImageURL    string
	IsSold      bool
}

func readItemForm(c *gin.Context) itemForm {
	return itemForm{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Price:       c.PostForm("price"),
		Category:    c.PostForm("category"),
		ImageURL:    c.PostForm("image_url"),
		IsSold:      c.PostForm("is_sold") != "",
	}
}

// price returns NaN for input that is not a number so item validation
// reports it against the price field.
func (f itemForm) price() float64 {
	p, err := strconv.ParseFloat(strings.TrimSpace(f.Price), 64)
	if err != nil {
		return math.NaN()
	}
	return p
}

func (f itemForm) categoryID() uint {
	id, err := strconv.ParseUint(f.Category, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func formFromItem(it *models.Item) itemForm {
	return itemForm{
		Name:        it.Name,
		Description: it.Description,
		Price:       strconv.FormatFloat(it.Price, 'f', 2, 64),
		Category:    fmt.Sprint(it.CategoryID),
		ImageURL:    it.ImageURL,
		IsSold:      it.IsSold,
	}
}

func (s *server) handleHome(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := item.Browse(ctx, s.db, item.BrowseFilters{Limit: homeItemLimit})
	if err != nil {
		s.fail(c, err)
		return
	}
	cats, err := item.ListCategories(ctx, s.db)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "home", gin.H{"items": items, "categories": cats})
}

func (s *server) handleContact(c *gin.Context) {
	s.render(c, http.StatusOK, "contact", nil)
}

func (s *server) handleBrowse(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("query")
	var categoryID uint
	if v, err := strconv.ParseUint(c.Query("category"), 10, 64); err == nil {
		categoryID = uint(v)
	}

	items, err := item.Browse(ctx, s.db, item.BrowseFilters{Query: query, CategoryID: categoryID})
	if err != nil {
		s.fail(c, err)
		return
	}
	cats, err := item.ListCategories(ctx, s.db)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "items", gin.H{
		"items":      items,
		"categories": cats,
		"query":      query,
		"categoryID": categoryID,
	})
}

func (s *server) handleItemDetail(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	it, err := item.Get(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	related, err := item.Related(c.Request.Context(), s.db, it, relatedItemLimit)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "item", gin.H{"item": it, "related": related})
}

func (s *server) renderItemForm(c *gin.Context, title string, form itemForm, errs map[string][]string, editing bool) {
	cats, err := item.ListCategories(c.Request.Context(), s.db)
	if err != nil {
		s.fail(c, err)
		return
	}
	data := gin.H{
		"title":      title,
		"form":       form,
		"categories": cats,
		"editing":    editing,
	}
	if errs != nil {
		data["errors"] = errs
	}
	s.render(c, http.StatusOK, "item_form", data)
}

func (s *server) handleSellForm(c *gin.Context) {
	s.renderItemForm(c, "New item", itemForm{}, nil, false)
}

func (s *server) handleSell(c *gin.Context) {
	form := readItemForm(c)
	it, err := item.Create(c.Request.Context(), s.db, item.CreateOpts{
		OwnerID:     currentUser(c).ID,
		CategoryID:  form.categoryID(),
		Name:        form.Name,
		Description: form.Description,
		Price:       form.price(),
		ImageURL:    form.ImageURL,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			s.renderItemForm(c, "New item", form, apperr.FieldErrors(err), false)
			return
		}
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/items/%d", it.ID))
}

func (s *server) handleEditForm(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	it, err := item.GetOwned(c.Request.Context(), s.db, id, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.renderItemForm(c, "Edit item", formFromItem(it), nil, true)
}

func (s *server) handleEdit(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	form := readItemForm(c)
	it, err := item.Update(c.Request.Context(), s.db, id, currentUser(c).ID, item.UpdateOpts{
		Name:        form.Name,
		Description: form.Description,
		Price:       form.price(),
		ImageURL:    form.ImageURL,
		IsSold:      form.IsSold,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			s.renderItemForm(c, "Edit item", form, apperr.FieldErrors(err), true)
			return
		}
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/items/%d", it.ID))
}

func (s *server) handleDelete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := item.Delete(c.Request.Context(), s.db, id, currentUser(c).ID); err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func (s *server) handleDashboard(c *gin.Context) {
	items, err := item.ListByOwner(c.Request.Context(), s.db, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, "dashboard", gin.H{"items": items})
}
